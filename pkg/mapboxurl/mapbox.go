// Package mapboxurl expands mapbox:// style/source/sprite/glyph/tile
// URLs to their HTTPS endpoints and enforces the public-token policy.
package mapboxurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/styledmap/smp/pkg/smperrors"
)

const scheme = "mapbox://"

// IsMapboxURL reports whether u uses the mapbox:// scheme.
func IsMapboxURL(u string) bool {
	return strings.HasPrefix(u, scheme)
}

// Expand rewrites a mapbox:// URL to its https://api.mapbox.com
// equivalent and appends ?access_token=<token>. Non-mapbox URLs are
// returned unchanged. token must be a public ("pk.") token.
func Expand(raw, token string) (string, error) {
	if !IsMapboxURL(raw) {
		return raw, nil
	}
	if token == "" {
		return "", smperrors.New(smperrors.KindMissingAccessToken, "mapbox:// URL %q requires an access token", raw)
	}
	if strings.HasPrefix(token, "sk.") {
		return "", smperrors.New(smperrors.KindSecretToken, "secret tokens (sk.*) are not permitted for client-side expansion")
	}

	path := strings.TrimPrefix(raw, scheme)

	endpoint, err := expandPath(path)
	if err != nil {
		return "", err
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%saccess_token=%s", endpoint, sep, url.QueryEscape(token)), nil
}

func expandPath(path string) (string, error) {
	switch {
	case strings.HasPrefix(path, "styles/"):
		rest := strings.TrimPrefix(path, "styles/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", smperrors.New(smperrors.KindInvalidStyle, "malformed mapbox style URL path %q", path)
		}
		return fmt.Sprintf("https://api.mapbox.com/styles/v1/%s/%s", parts[0], parts[1]), nil

	case strings.HasPrefix(path, "fonts/"):
		rest := strings.TrimPrefix(path, "fonts/")
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) != 3 {
			return "", smperrors.New(smperrors.KindInvalidStyle, "malformed mapbox font URL path %q", path)
		}
		user, stack, rangePbf := parts[0], parts[1], parts[2]
		return fmt.Sprintf("https://api.mapbox.com/fonts/v1/%s/%s/%s", user, stack, rangePbf), nil

	case strings.HasPrefix(path, "sprites/"):
		rest := strings.TrimPrefix(path, "sprites/")
		// rest is "{user}/{id}{format}{ext}" where format in {"", "@2x", ...}
		// and ext in {.png,.json}; but the canonical spec input is
		// "sprites/{user}/{id}" with format/ext supplied by the caller
		// when building variant URLs (see ExpandSprite below).
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return "", smperrors.New(smperrors.KindInvalidStyle, "malformed mapbox sprite URL path %q", path)
		}
		return fmt.Sprintf("https://api.mapbox.com/styles/v1/%s/%s/sprite", parts[0], parts[1]), nil

	default:
		// Bare "{user}.{id}" tileset reference.
		return fmt.Sprintf("https://api.mapbox.com/v4/%s.json?secure", path), nil
	}
}

// ExpandSprite builds the HTTPS URL for a specific sprite pixel-ratio
// variant (format in {"", "@2x", ...}) and file extension
// (".png"/".json") of a mapbox://sprites/{user}/{id} reference.
func ExpandSprite(raw, format, ext, token string) (string, error) {
	base, err := Expand(raw, token)
	if err != nil {
		return "", err
	}
	if !IsMapboxURL(raw) {
		return base, nil
	}
	// base is ".../sprite?access_token=...": splice format+ext before the query.
	parts := strings.SplitN(base, "?", 2)
	return fmt.Sprintf("%s%s%s?%s", parts[0], format, ext, parts[1]), nil
}
