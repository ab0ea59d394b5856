package extract

import (
	"reflect"
	"strings"
	"testing"
)

const chapterMarkup = `<html><body>
<h1>Chapitre I</h1>
<p>Le docteur sortit de son cabinet.</p>
<p>Il faisait <em>beau</em> ce matin-la.</p>
<div class="note">
  <p>Une note en marge.</p>
</div>
<script>console.log("noise");</script>
</body></html>`

func TestExtract(t *testing.T) {
	e := NewExtractor()
	segments := e.Extract(chapterMarkup, nil)

	t.Run("document order and addresses", func(t *testing.T) {
		want := []string{
			"html[1]/body[1]/h1[1]",
			"html[1]/body[1]/p[1]",
			"html[1]/body[1]/p[2]",
			"html[1]/body[1]/div[1]/p[1]",
		}
		if len(segments) != len(want) {
			t.Fatalf("segments = %d, want %d", len(segments), len(want))
		}
		for i, s := range segments {
			if s.Address != want[i] {
				t.Errorf("segment %d address = %q, want %q", i, s.Address, want[i])
			}
			if s.OrderIndex != i {
				t.Errorf("segment %d order index = %d", i, s.OrderIndex)
			}
		}
	})

	t.Run("inline markup folded into block", func(t *testing.T) {
		s := segments[2]
		if s.PlainText != "Il faisait beau ce matin-la." {
			t.Errorf("plain text = %q", s.PlainText)
		}
		if !strings.Contains(s.FormattedFragment, "<em>beau</em>") {
			t.Errorf("fragment lost inline markup: %q", s.FormattedFragment)
		}
	})

	t.Run("script content skipped", func(t *testing.T) {
		for _, s := range segments {
			if strings.Contains(s.PlainText, "console.log") {
				t.Errorf("script text leaked into %q", s.Address)
			}
		}
	})
}

func TestExtractAddressStability(t *testing.T) {
	e := NewExtractor()
	first := e.Extract(chapterMarkup, nil)
	second := e.Extract(chapterMarkup, nil)

	if !reflect.DeepEqual(first, second) {
		t.Error("re-extraction of unmodified markup produced different segments")
	}
}

func TestExtractMinLength(t *testing.T) {
	markup := `<html><body><p>x</p><p>ab</p><p>*</p></body></html>`

	segments := NewExtractor().Extract(markup, nil)
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].PlainText != "ab" {
		t.Errorf("kept %q", segments[0].PlainText)
	}

	loose := NewExtractorWithMinLength(1).Extract(markup, nil)
	if len(loose) != 3 {
		t.Errorf("min length 1 segments = %d, want 3", len(loose))
	}
}

func TestExtractWhitespaceCollapsing(t *testing.T) {
	markup := "<html><body><p>  Un   texte\n\t  espace.  </p></body></html>"
	segments := NewExtractor().Extract(markup, nil)
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].PlainText != "Un texte espace." {
		t.Errorf("plain text = %q", segments[0].PlainText)
	}
}

const splitFileMarkup = `<html><body>
<h1 id="ch1">Premier chapitre</h1>
<p>Premiere phrase du premier.</p>
<p>Seconde phrase du premier.</p>
<h1 id="ch2">Second chapitre</h1>
<p>Premiere phrase du second.</p>
</body></html>`

func TestExtractFragmentScoped(t *testing.T) {
	e := NewExtractor()

	whole := e.Extract(splitFileMarkup, nil)
	first := e.Extract(splitFileMarkup, &FragmentBounds{StartID: "ch1", EndID: "ch2"})
	second := e.Extract(splitFileMarkup, &FragmentBounds{StartID: "ch2"})

	t.Run("non-overlapping union covers the file", func(t *testing.T) {
		if len(first)+len(second) != len(whole) {
			t.Fatalf("fragments = %d + %d, whole = %d", len(first), len(second), len(whole))
		}

		texts := make(map[string]int)
		for _, s := range append(append([]Segment{}, first...), second...) {
			texts[s.PlainText]++
		}
		for text, n := range texts {
			if n != 1 {
				t.Errorf("segment %q appears %d times across fragments", text, n)
			}
		}
	})

	t.Run("fragment addresses match whole-file addresses", func(t *testing.T) {
		wholeByText := make(map[string]string)
		for _, s := range whole {
			wholeByText[s.PlainText] = s.Address
		}
		for _, s := range append(append([]Segment{}, first...), second...) {
			if wholeByText[s.PlainText] != s.Address {
				t.Errorf("address for %q = %q, whole-file pass gave %q",
					s.PlainText, s.Address, wholeByText[s.PlainText])
			}
		}
	})

	t.Run("start anchor included, end anchor excluded", func(t *testing.T) {
		if len(first) == 0 || first[0].PlainText != "Premier chapitre" {
			t.Fatalf("first fragment = %+v", first)
		}
		for _, s := range first {
			if s.PlainText == "Second chapitre" {
				t.Error("end anchor leaked into first fragment")
			}
		}
	})

	t.Run("empty fragment is not an error", func(t *testing.T) {
		segments := e.Extract(splitFileMarkup, &FragmentBounds{StartID: "missing-anchor"})
		if len(segments) != 0 {
			t.Errorf("segments = %d, want 0", len(segments))
		}
	})
}

func TestExtractAnchorInsideBlock(t *testing.T) {
	markup := `<html><body>
<p>Avant la borne.</p>
<p><a id="start"></a>Contenu vise.</p>
<p>Suite du contenu.</p>
</body></html>`

	segments := NewExtractor().Extract(markup, &FragmentBounds{StartID: "start"})
	// The block containing the anchor cannot be split; extraction begins at
	// the next block.
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
	if segments[0].PlainText != "Suite du contenu." {
		t.Errorf("plain text = %q", segments[0].PlainText)
	}
}

func TestExtractEndAnchorInsideBlock(t *testing.T) {
	markup := `<html><body>
<p>Premier contenu.</p>
<p><a id="ch2"></a>Apres la borne.</p>
<p>Contenu du suivant.</p>
</body></html>`

	e := NewExtractor()
	first := e.Extract(markup, &FragmentBounds{EndID: "ch2"})
	second := e.Extract(markup, &FragmentBounds{StartID: "ch2"})

	// The anchor block cannot be split, so it goes whole to the preceding
	// fragment and the following one starts after it.
	if len(first) != 2 {
		t.Fatalf("first fragment = %d segments, want 2", len(first))
	}
	if first[1].PlainText != "Apres la borne." {
		t.Errorf("first fragment ends with %q", first[1].PlainText)
	}
	if len(second) != 1 {
		t.Fatalf("second fragment = %d segments, want 1", len(second))
	}
	if second[0].PlainText != "Contenu du suivant." {
		t.Errorf("second fragment = %q", second[0].PlainText)
	}

	texts := make(map[string]int)
	for _, s := range append(append([]Segment{}, first...), second...) {
		texts[s.PlainText]++
	}
	for text, n := range texts {
		if n != 1 {
			t.Errorf("segment %q appears %d times across adjacent fragments", text, n)
		}
	}
}

func TestExtractFallback(t *testing.T) {
	// Stray table cells get discarded by the tree parser, leaving the
	// structural pass empty; the pattern scan still finds them.
	markup := `<td>Premiere cellule utile.</td><td>Deuxieme cellule utile.</td>`

	segments := NewExtractor().Extract(markup, nil)
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	if segments[0].Address != "td[1]" || segments[1].Address != "td[2]" {
		t.Errorf("addresses = %q, %q", segments[0].Address, segments[1].Address)
	}
	if segments[0].PlainText != "Premiere cellule utile." {
		t.Errorf("plain text = %q", segments[0].PlainText)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	if segments := NewExtractor().Extract("", nil); len(segments) != 0 {
		t.Errorf("segments = %d, want 0", len(segments))
	}
}

func TestFingerprint(t *testing.T) {
	a := []Segment{{PlainText: "un"}, {PlainText: "deux"}}
	b := []Segment{{PlainText: "un"}, {PlainText: "deux"}}
	c := []Segment{{PlainText: "un"}, {PlainText: "trois"}}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical content produced different fingerprints")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different content produced equal fingerprints")
	}
}
