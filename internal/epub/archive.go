package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxEntrySize caps a single decompressed ZIP entry to guard against
// zip bombs.
const maxEntrySize int64 = 128 * 1024 * 1024

// locateEntry finds a ZIP entry by path, exact match first, then
// case-insensitive.
func locateEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	lower := strings.ToLower(name)
	for _, f := range zr.File {
		if strings.ToLower(f.Name) == lower {
			return f
		}
	}
	return nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f := locateEntry(zr, name)
	if f == nil {
		return nil, fmt.Errorf("%w: missing entry %s", ErrMalformed, name)
	}
	return readFile(f)
}

func readFile(f *zip.File) ([]byte, error) {
	if !withinArchive(f.Name) {
		return nil, fmt.Errorf("%w: unsafe entry path %s", ErrMalformed, f.Name)
	}
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("%w: entry %s too large", ErrMalformed, f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %v", ErrMalformed, f.Name, err)
	}
	defer rc.Close()

	// The declared size can be forged; limit the actual read too.
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read entry %s: %v", ErrMalformed, f.Name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%w: entry %s exceeds size limit", ErrMalformed, f.Name)
	}

	return data, nil
}

// resolveWithin resolves href relative to the directory of basePath,
// both archive-internal forward-slash paths. Returns "" when the result
// would escape the archive root.
func resolveWithin(basePath, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	// Content documents may carry fragments in spine hrefs.
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}

	resolved := path.Clean(path.Join(path.Dir(basePath), href))
	if !withinArchive(resolved) {
		return ""
	}
	return resolved
}

func withinArchive(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
