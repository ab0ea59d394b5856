package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tocEntry is one navigation entry, flattened in document order.
type tocEntry struct {
	Title    string
	Path     string // ZIP-internal path, fragment removed
	Fragment string
}

// tocEntries extracts navigation entries, preferring the EPUB 3 nav document
// and falling back to the NCX. A missing or unparseable TOC is non-fatal and
// yields no entries.
func (r *reader) tocEntries(pkg *opfPackage, opfPath string, doc *Document) []tocEntry {
	if strings.HasPrefix(pkg.Version, "3") {
		if entries, ok := r.navEntries(pkg, opfPath, doc); ok {
			return entries
		}
	}
	if entries, ok := r.ncxEntries(pkg, opfPath, doc); ok {
		return entries
	}
	return nil
}

// navEntries parses the EPUB 3 XHTML navigation document.
func (r *reader) navEntries(pkg *opfPackage, opfPath string, doc *Document) ([]tocEntry, bool) {
	var navHref string
	for _, item := range pkg.Manifest.Items {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "nav" {
				navHref = item.Href
				break
			}
		}
		if navHref != "" {
			break
		}
	}
	if navHref == "" {
		return nil, false
	}

	navPath := resolveRelative(opfPath, navHref)
	data, err := r.readFile(navPath)
	if err != nil {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("nav document unreadable: %v", err))
		return nil, false
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("nav document unparseable: %v", err))
		return nil, false
	}

	var toc *goquery.Selection
	gq.Find("nav").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, t := range strings.Fields(s.AttrOr("epub:type", "")) {
			if t == "toc" {
				toc = s
				return false
			}
		}
		return true
	})
	if toc == nil {
		// A single nav without an epub:type still usually is the TOC.
		if all := gq.Find("nav"); all.Length() == 1 {
			toc = all.First()
		}
	}
	if toc == nil {
		return nil, false
	}

	var entries []tocEntry
	toc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		title := strings.TrimSpace(a.Text())
		if href == "" {
			return
		}
		file, fragment := splitFragment(href)
		resolved := resolveRelative(navPath, file)
		if resolved == "" {
			return
		}
		entries = append(entries, tocEntry{Title: title, Path: resolved, Fragment: fragment})
	})

	return entries, len(entries) > 0
}

type ncxDoc struct {
	XMLName xml.Name `xml:"ncx"`
	NavMap  struct {
		Points []ncxPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxPoint `xml:"navPoint"`
}

// ncxEntries parses the EPUB 2 NCX table of contents.
func (r *reader) ncxEntries(pkg *opfPackage, opfPath string, doc *Document) ([]tocEntry, bool) {
	ncxHref := ""
	for _, item := range pkg.Manifest.Items {
		if pkg.Spine.Toc != "" && item.ID == pkg.Spine.Toc {
			ncxHref = item.Href
			break
		}
		if ncxHref == "" && strings.Contains(strings.ToLower(item.MediaType), "dtbncx") {
			ncxHref = item.Href
		}
	}
	if ncxHref == "" {
		return nil, false
	}

	ncxPath := resolveRelative(opfPath, ncxHref)
	data, err := r.readFile(ncxPath)
	if err != nil {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("ncx unreadable: %v", err))
		return nil, false
	}

	var ncx ncxDoc
	if err := xml.Unmarshal(stripBOM(preprocessEntities(data)), &ncx); err != nil {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("ncx unparseable: %v", err))
		return nil, false
	}

	var entries []tocEntry
	var walk func(points []ncxPoint)
	walk = func(points []ncxPoint) {
		for _, p := range points {
			src := strings.TrimSpace(p.Content.Src)
			if src != "" {
				file, fragment := splitFragment(src)
				if resolved := resolveRelative(ncxPath, file); resolved != "" {
					entries = append(entries, tocEntry{
						Title:    strings.TrimSpace(p.Label.Text),
						Path:     resolved,
						Fragment: fragment,
					})
				}
			}
			walk(p.Children)
		}
	}
	walk(ncx.NavMap.Points)

	return entries, len(entries) > 0
}
