package container

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/styledmap/smp/pkg/smperrors"
	"github.com/styledmap/smp/pkg/smpuri"
	"github.com/styledmap/smp/pkg/style"
)

// Reader opens an SMP archive for random-access resource lookup.
// klauspost/compress/zip.Reader supports concurrent Open() calls
// internally, so getResource needs no read lock; a mutex protects
// only close bookkeeping.
type Reader struct {
	mu     sync.Mutex
	zr     *zip.Reader
	closer io.Closer // non-nil when backed by an *os.File we own
	index  map[string]*zip.File
	closed bool
}

// Open opens path as an SMP archive, keeping the file descriptor open
// for subsequent GetResource calls. Close must be called to release
// it even if a later call fails.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindNotFound, err, "File not found: %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, smperrors.Wrap(smperrors.KindInvalidArchive, err, "stat %s", path)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, smperrors.Wrap(smperrors.KindInvalidArchive, err, "Not a valid ZIP archive: %s", path)
	}

	return newReader(zr, f), nil
}

// OpenBytes opens an in-memory archive (e.g. a freshly-written buffer
// under test, or a downloaded archive held in memory).
func OpenBytes(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidArchive, err, "Not a valid ZIP archive")
	}
	return newReader(zr, nil), nil
}

func newReader(zr *zip.Reader, closer io.Closer) *Reader {
	idx := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		idx[f.Name] = f
	}
	return &Reader{zr: zr, closer: closer, index: idx}
}

// GetVersion returns the contents of VERSION, or ("", false) if the
// archive has none.
func (r *Reader) GetVersion() (string, bool, error) {
	f, ok := r.index[smpuri.VersionPath]
	if !ok {
		return "", false, nil
	}
	b, err := readAll(f)
	if err != nil {
		return "", false, err
	}
	return strings.TrimRight(string(b), "\n"), true, nil
}

// GetStyle parses style.json into the tagged-variant model.
func (r *Reader) GetStyle() (*style.Document, error) {
	f, ok := r.index[smpuri.StylePath]
	if !ok {
		return nil, smperrors.New(smperrors.KindNotFound, "archive has no style.json")
	}
	b, err := readAll(f)
	if err != nil {
		return nil, err
	}
	return style.Parse(b)
}

// Resource is a resolved archive entry: its content stream and
// resolved content-type.
type Resource struct {
	Reader      io.ReadCloser
	ContentType string
	Size        uint64
}

// GetResource opens the archive entry at path for streaming read.
// Safe to call concurrently from multiple goroutines.
func (r *Reader) GetResource(path string) (*Resource, error) {
	f, ok := r.index[path]
	if !ok {
		return nil, smperrors.New(smperrors.KindNotFound, "no archive entry at %q", path)
	}
	contentType, err := smpuri.ContentType(path)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidArchive, err, "opening archive entry %q", path)
	}
	return &Resource{Reader: rc, ContentType: contentType, Size: f.UncompressedSize64}, nil
}

// ListPrefix returns every archive path beginning with prefix, used by
// the validator's tile/glyph/sprite coverage checks.
func (r *Reader) ListPrefix(prefix string) []string {
	var out []string
	for name := range r.index {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Has reports whether an exact archive path exists.
func (r *Reader) Has(path string) bool {
	_, ok := r.index[path]
	return ok
}

// Close releases the underlying file descriptor, if any. Idempotent,
// and safe to call even when Open's construction failed partway
// through (Open never returns a non-nil Reader without one already
// being closed on error, so no FD leak is possible from that path;
// this method itself never panics on a double call).
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, smperrors.Wrap(smperrors.KindInvalidArchive, err, "opening archive entry %q", f.Name)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
