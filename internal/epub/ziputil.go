package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"regexp"
)

// maxEntrySize bounds a single decompressed ZIP entry, guarding against zip
// bombs. Chapter files are orders of magnitude smaller.
const maxEntrySize int64 = 64 * 1024 * 1024

func readZipEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("epub: entry %s too large (%d bytes)", f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The declared size can be forged; re-check while reading.
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("epub: read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("epub: entry %s exceeds size limit", f.Name)
	}
	return data, nil
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// entityNumeric maps HTML named entities that encoding/xml rejects to their
// numeric character references.
var entityNumeric = map[string][]byte{
	"nbsp":   []byte("&#160;"),
	"mdash":  []byte("&#8212;"),
	"ndash":  []byte("&#8211;"),
	"hellip": []byte("&#8230;"),
	"lsquo":  []byte("&#8216;"),
	"rsquo":  []byte("&#8217;"),
	"ldquo":  []byte("&#8220;"),
	"rdquo":  []byte("&#8221;"),
	"laquo":  []byte("&#171;"),
	"raquo":  []byte("&#187;"),
	"copy":   []byte("&#169;"),
	"reg":    []byte("&#174;"),
	"trade":  []byte("&#8482;"),
	"eacute": []byte("&#233;"),
	"egrave": []byte("&#232;"),
	"ccedil": []byte("&#231;"),
	"auml":   []byte("&#228;"),
	"ouml":   []byte("&#246;"),
	"uuml":   []byte("&#252;"),
}

var entityPattern = regexp.MustCompile(
	`(?i)&(nbsp|mdash|ndash|hellip|lsquo|rsquo|ldquo|rdquo|laquo|raquo|copy|reg|trade|eacute|egrave|ccedil|auml|ouml|uuml);`)

// preprocessEntities rewrites named entities to numeric references so strict
// XML parsing survives HTML-flavored package and NCX files.
func preprocessEntities(data []byte) []byte {
	return entityPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(match[1 : len(match)-1])
		if repl, ok := entityNumeric[toLowerASCII(name)]; ok {
			return repl
		}
		return match
	})
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
