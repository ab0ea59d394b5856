// Package extract converts chapter markup into ordered, addressable segments.
//
// A segment is one block-level unit of translatable text. Its address is a
// structural path (tag name plus same-tag sibling ordinal, chained from the
// document root), which is stable across re-extraction of unmodified markup.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Segment is one addressable, translatable unit of chapter text.
type Segment struct {
	Address           string `json:"address"`
	PlainText         string `json:"plain_text"`
	FormattedFragment string `json:"formatted_fragment"`
	OrderIndex        int    `json:"order_index"`
}

// FragmentBounds scopes extraction to the part of a markup file between two
// element identifiers, for chapter boundaries that fall mid-file. StartID is
// inclusive, EndID exclusive. An empty EndID runs to the end of the file.
// An anchor nested inside a block cannot split it: the whole block belongs
// to the fragment before the anchor.
type FragmentBounds struct {
	StartID string
	EndID   string
}

// MinSegmentLength is the default minimum flattened text length; anything
// shorter is dropped as separator noise.
const MinSegmentLength = 2

// blockTags are the extraction points. When one is reached its full descendant
// text is flattened into a single segment and the walk does not recurse further.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Td:         true,
	atom.Th:         true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.Pre:        true,
	atom.Figcaption: true,
	atom.Caption:    true,
}

// skipTags are never extracted or recursed into.
var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Noscript: true,
}

// Extractor extracts segments from chapter markup. Stateless and safe for
// concurrent use.
type Extractor struct {
	minTextLen int
}

// NewExtractor creates an extractor with the default minimum segment length.
func NewExtractor() *Extractor {
	return &Extractor{minTextLen: MinSegmentLength}
}

// NewExtractorWithMinLength creates an extractor with a custom minimum
// flattened text length.
func NewExtractorWithMinLength(minLen int) *Extractor {
	if minLen < 1 {
		minLen = 1
	}
	return &Extractor{minTextLen: minLen}
}

// Extract walks the markup's element tree and returns segments in document
// order. It never fails on malformed input: when the structural pass over a
// whole file yields nothing it degrades to a tag-pattern scan, and in the
// worst case returns an empty list, which callers must treat as "no
// translatable content".
func (e *Extractor) Extract(markup string, bounds *FragmentBounds) []Segment {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		doc = nil
	}

	var segments []Segment
	if doc != nil {
		w := &walker{
			extractor: e,
			bounds:    bounds,
			active:    bounds == nil || bounds.StartID == "",
		}
		w.walk(doc, "")
		segments = w.segments
	}

	// Fragment-scoped extraction may legitimately find nothing between its
	// bounds; only a whole-file structural pass that comes up empty falls
	// back to the pattern scan.
	if len(segments) == 0 && bounds == nil {
		segments = e.fallbackExtract(markup)
	}

	return segments
}

// walker carries the traversal state for one extraction pass.
type walker struct {
	extractor *Extractor
	bounds    *FragmentBounds

	active   bool // inside the fragment bounds (always true without bounds)
	finished bool // end identifier reached
	segments []Segment
}

// walk visits n's element children in document order. parentPath is the
// address prefix of n.
func (w *walker) walk(n *html.Node, parentPath string) {
	// Ordinals count same-tag preceding siblings at this level. They are
	// computed over the full tree so that fragment-scoped extraction yields
	// the same addresses as a whole-file pass.
	ordinals := make(map[string]int)

	for c := n.FirstChild; c != nil && !w.finished; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}

		tag := c.Data
		ordinals[tag]++
		path := tag + "[" + strconv.Itoa(ordinals[tag]) + "]"
		if parentPath != "" {
			path = parentPath + "/" + path
		}

		if w.bounds != nil {
			id := nodeID(c)
			if w.active && w.bounds.EndID != "" && id == w.bounds.EndID {
				w.finished = true
				return
			}
			if !w.active && id == w.bounds.StartID {
				w.active = true
			}
		}

		if skipTags[c.DataAtom] {
			continue
		}

		if blockTags[c.DataAtom] {
			if w.active {
				w.emit(c, path)
				// The end anchor may sit inside a block too; that block
				// still belongs to this fragment, and the walk stops
				// after it.
				if w.bounds != nil && containsID(c, w.bounds.EndID) {
					w.finished = true
					return
				}
			} else if w.bounds != nil {
				// The start anchor may sit inside a block; scan the
				// subtree for it so extraction can begin at the next block.
				if containsID(c, w.bounds.StartID) {
					w.active = true
				}
			}
			// Blocks are flattened whole; never recurse into them.
			continue
		}

		w.walk(c, path)
	}
}

// emit flattens a block node into a segment, folding inline markup verbatim
// into the formatted fragment.
func (w *walker) emit(n *html.Node, path string) {
	text := flattenText(n)
	if utf8.RuneCountInString(text) < w.extractor.minTextLen {
		return
	}

	w.segments = append(w.segments, Segment{
		Address:           path,
		PlainText:         text,
		FormattedFragment: renderNode(n),
		OrderIndex:        len(w.segments),
	})
}

// flattenText collects the descendant text of n, collapsing whitespace runs.
func flattenText(n *html.Node) string {
	var buf strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && skipTags[node.DataAtom] {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// renderNode serializes a node back to markup. A render failure yields an
// empty fragment rather than aborting extraction.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// nodeID returns the element's id attribute, if any.
func nodeID(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "id" && attr.Namespace == "" {
			return attr.Val
		}
	}
	return ""
}

// containsID reports whether the subtree rooted at n contains an element with
// the given id.
func containsID(n *html.Node, id string) bool {
	if id == "" {
		return false
	}
	if n.Type == html.ElementNode && nodeID(n) == id {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsID(c, id) {
			return true
		}
	}
	return false
}

// Fingerprint hashes the flattened content of a segment list. Two chapter
// entries with identical fingerprints are duplicate artifacts (e.g. adjacent
// TOC entries resolving to the same physical content).
func Fingerprint(segments []Segment) string {
	h := sha256.New()
	for _, s := range segments {
		h.Write([]byte(s.PlainText))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
