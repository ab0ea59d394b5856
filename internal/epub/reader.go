// Package epub reads EPUB archives for import: the ZIP container, the OPF
// package document, spine-ordered chapter markup, and display titles from the
// navigation document.
package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/versobook/verso/internal/extract"
)

// ErrInvalid marks an archive that is not a usable EPUB.
var ErrInvalid = errors.New("epub: invalid archive")

const expectedMimetype = "application/epub+zip"

// Metadata is the subset of OPF metadata the importer needs.
type Metadata struct {
	Title    string
	Author   string
	Language string
}

// Chapter is one logical chapter: a spine file, or an anchor-delimited slice
// of one when several navigation entries point into the same file.
type Chapter struct {
	Number int
	Title  string
	Path   string // ZIP-internal path of the markup file
	Markup string
	Bounds *extract.FragmentBounds // nil when the chapter spans the whole file
}

// Document is a fully parsed EPUB ready for import.
type Document struct {
	Metadata Metadata
	Chapters []Chapter
	Warnings []string
}

// Open reads the EPUB at the given filesystem path.
func Open(name string) (*Document, error) {
	zrc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", name, err)
	}
	defer zrc.Close()
	return Read(&zrc.Reader)
}

// ReadFrom parses an EPUB from an io.ReaderAt with the given size.
func ReadFrom(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	return Read(zr)
}

// Read parses an EPUB from an already-open ZIP reader.
func Read(zr *zip.Reader) (*Document, error) {
	r := &reader{zr: zr}
	r.buildIndex()

	doc := &Document{}
	r.checkMimetype(doc)

	opfPath, err := r.opfPath()
	if err != nil {
		return nil, err
	}

	opfData, err := r.readFile(opfPath)
	if err != nil {
		return nil, fmt.Errorf("epub: read package document: %w", err)
	}
	pkg, err := parsePackage(opfData)
	if err != nil {
		return nil, err
	}
	doc.Metadata = pkg.metadata()

	spinePaths := r.spinePaths(pkg, opfPath)
	if len(spinePaths) == 0 {
		return nil, fmt.Errorf("epub: spine has no readable items: %w", ErrInvalid)
	}

	entries := r.tocEntries(pkg, opfPath, doc)
	chapters, err := r.buildChapters(spinePaths, entries, doc)
	if err != nil {
		return nil, err
	}
	doc.Chapters = chapters
	return doc, nil
}

type reader struct {
	zr      *zip.Reader
	exact   map[string]*zip.File
	lowered map[string]*zip.File
}

func (r *reader) buildIndex() {
	r.exact = make(map[string]*zip.File, len(r.zr.File))
	r.lowered = make(map[string]*zip.File, len(r.zr.File))
	for _, f := range r.zr.File {
		if _, ok := r.exact[f.Name]; !ok {
			r.exact[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := r.lowered[lower]; !ok {
			r.lowered[lower] = f
		}
	}
}

func (r *reader) find(name string) *zip.File {
	if f, ok := r.exact[name]; ok {
		return f
	}
	if f, ok := r.lowered[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

func (r *reader) readFile(name string) ([]byte, error) {
	f := r.find(name)
	if f == nil {
		return nil, fmt.Errorf("epub: file not found: %s", name)
	}
	return readZipEntry(f)
}

// checkMimetype records deviations from the EPUB OCF mimetype rule as
// warnings; plenty of real archives get this wrong and still read fine.
func (r *reader) checkMimetype(doc *Document) {
	if len(r.zr.File) == 0 {
		doc.Warnings = append(doc.Warnings, "empty archive")
		return
	}
	first := r.zr.File[0]
	if first.Name != "mimetype" {
		doc.Warnings = append(doc.Warnings, "first entry is not mimetype")
		return
	}
	data, err := readZipEntry(first)
	if err != nil || strings.TrimSpace(string(data)) != expectedMimetype {
		doc.Warnings = append(doc.Warnings, "unexpected mimetype entry")
	}
}

// spinePaths returns the ZIP paths of the linear spine documents, restricted
// to markup media types.
func (r *reader) spinePaths(pkg *opfPackage, opfPath string) []string {
	byID := make(map[string]opfItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		byID[item.ID] = item
	}

	var paths []string
	for _, ref := range pkg.Spine.Refs {
		if ref.Linear == "no" {
			continue
		}
		item, ok := byID[ref.IDRef]
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(item.MediaType), "html") {
			continue
		}
		if p := resolveRelative(opfPath, item.Href); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// buildChapters walks the spine and splits files into chapters using the
// navigation entries. A file with several entries becomes several
// anchor-delimited chapters; a file with none becomes one untitled chapter.
func (r *reader) buildChapters(spinePaths []string, entries []tocEntry, doc *Document) ([]Chapter, error) {
	byPath := make(map[string][]tocEntry)
	for _, e := range entries {
		byPath[e.Path] = append(byPath[e.Path], e)
	}

	var chapters []Chapter
	for _, p := range spinePaths {
		data, err := r.readFile(p)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("unreadable spine file %s: %v", p, err))
			continue
		}
		markup := string(stripBOM(data))

		fileEntries := byPath[p]
		if len(fileEntries) == 0 {
			chapters = append(chapters, Chapter{Path: p, Markup: markup})
			continue
		}

		for i, e := range fileEntries {
			ch := Chapter{Title: e.Title, Path: p, Markup: markup}
			start := e.Fragment
			end := ""
			if i+1 < len(fileEntries) {
				end = fileEntries[i+1].Fragment
			}
			if start != "" || end != "" {
				ch.Bounds = &extract.FragmentBounds{StartID: start, EndID: end}
			}
			chapters = append(chapters, ch)
		}
	}

	for i := range chapters {
		chapters[i].Number = i + 1
	}
	return chapters, nil
}

// resolveRelative resolves href against the directory of basePath, rejecting
// paths that escape the archive root.
func resolveRelative(basePath, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ""
	}
	return cleaned
}

// splitFragment separates an href into its file path and anchor.
func splitFragment(href string) (file, fragment string) {
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		return href[:idx], href[idx+1:]
	}
	return href, ""
}
