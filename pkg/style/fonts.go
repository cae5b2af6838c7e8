package style

// ExtractTextFont reads the "text-font" property from a layer's
// layout object, if present, classifying it as a literal stack or an
// expression tree.
func ExtractTextFont(layer map[string]any) (*TextFont, bool) {
	layout, ok := layer["layout"].(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := layout["text-font"]
	if !ok {
		return nil, false
	}

	if stack, ok := toStringSlice(raw); ok {
		return &TextFont{Kind: FontLiteral, Literal: stack}, true
	}
	return &TextFont{Kind: FontExpression, Tree: raw}, true
}

// SetTextFont writes a single-element literal font stack back onto a
// layer's layout object, creating layout if necessary.
func SetTextFont(layer map[string]any, stack []string) {
	layout, ok := layer["layout"].(map[string]any)
	if !ok {
		layout = map[string]any{}
		layer["layout"] = layout
	}
	arr := make([]any, len(stack))
	for i, s := range stack {
		arr[i] = s
	}
	layout["text-font"] = arr
}

// CollectFontStacks walks every layer's text-font property (literal or
// expression) and returns every distinct font-name stack referenced,
// in first-seen order.
func CollectFontStacks(layers []map[string]any) [][]string {
	var out [][]string
	seen := map[string]bool{}

	add := func(stack []string) {
		key := joinStack(stack)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, stack)
	}

	for _, layer := range layers {
		tf, ok := ExtractTextFont(layer)
		if !ok {
			continue
		}
		switch tf.Kind {
		case FontLiteral:
			add(tf.Literal)
		case FontExpression:
			walkFontExpr(tf.Tree, add)
		}
	}
	return out
}

// walkFontExpr recursively finds every nested ['literal', [...]] array
// form and every leaf array of strings within a text-font expression
// tree, invoking add for each stack found.
func walkFontExpr(node any, add func([]string)) {
	arr, ok := node.([]any)
	if !ok {
		return
	}

	if len(arr) == 2 {
		if tag, ok := arr[0].(string); ok && tag == "literal" {
			if inner, ok := arr[1].([]any); ok {
				if stack, ok := toStringSliceAny(inner); ok {
					add(stack)
					return
				}
			}
		}
	}

	if stack, ok := toStringSliceAny(arr); ok {
		add(stack)
		return
	}

	for _, e := range arr {
		walkFontExpr(e, add)
	}
}

func toStringSlice(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	return toStringSliceAny(arr)
}

func toStringSliceAny(arr []any) ([]string, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func joinStack(stack []string) string {
	out := ""
	for i, s := range stack {
		if i > 0 {
			out += "\x00"
		}
		out += s
	}
	return out
}

// ReplaceFontStack picks the first name in stack present in available,
// falling back to available[0] when none match, per the font-stack
// replacement rule.
func ReplaceFontStack(stack []string, available []string) []string {
	if len(available) == 0 {
		return stack
	}
	avail := map[string]bool{}
	for _, a := range available {
		avail[a] = true
	}
	for _, name := range stack {
		if avail[name] {
			return []string{name}
		}
	}
	return []string{available[0]}
}
