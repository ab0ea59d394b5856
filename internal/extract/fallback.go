package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// fallbackTags are the tags the pattern scan recognizes. Go regexps have no
// backreferences, so each tag gets its own pattern.
var fallbackTags = []string{"p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "td"}

var fallbackPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(fallbackTags))
	for _, tag := range fallbackTags {
		patterns[tag] = regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>(.*?)</\s*` + tag + `\s*>`)
	}
	return patterns
}()

var innerTagPattern = regexp.MustCompile(`<[^>]*>`)

type fallbackMatch struct {
	offset   int
	tag      string
	fragment string
	text     string
}

// fallbackExtract is the degrade path for markup the structural parser got
// nothing out of: a flat tag-pattern scan over the raw text. Addresses use a
// per-tag counter instead of a structural path, and duplicate plain-text
// segments are skipped.
func (e *Extractor) fallbackExtract(markup string) []Segment {
	var matches []fallbackMatch
	for _, tag := range fallbackTags {
		for _, loc := range fallbackPatterns[tag].FindAllStringSubmatchIndex(markup, -1) {
			inner := markup[loc[2]:loc[3]]
			text := strings.Join(strings.Fields(html.UnescapeString(innerTagPattern.ReplaceAllString(inner, " "))), " ")
			matches = append(matches, fallbackMatch{
				offset:   loc[0],
				tag:      tag,
				fragment: strings.TrimSpace(markup[loc[0]:loc[1]]),
				text:     text,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })

	var segments []Segment
	counters := make(map[string]int)
	seen := make(map[string]bool)
	for _, m := range matches {
		counters[m.tag]++
		if utf8.RuneCountInString(m.text) < e.minTextLen {
			continue
		}
		if seen[m.text] {
			continue
		}
		seen[m.text] = true

		segments = append(segments, Segment{
			Address:           m.tag + "[" + strconv.Itoa(counters[m.tag]) + "]",
			PlainText:         m.text,
			FormattedFragment: m.fragment,
			OrderIndex:        len(segments),
		})
	}
	return segments
}
