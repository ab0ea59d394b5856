package library

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseBook(t *testing.T) {
	row := map[string]any{
		"id":              "b1",
		"title":           "La Peste",
		"original_title":  "The Plague",
		"author":          "Albert Camus",
		"source_language": "English",
		"target_language": "French",
		"status":          "translating",
		"total_chapters":  float64(12),
		"created_at":      "2026-08-01T10:30:00Z",
	}

	b := parseBook(row)
	if b.ID != "b1" || b.Title != "La Peste" || b.OriginalTitle != "The Plague" {
		t.Errorf("book = %+v", b)
	}
	if b.Status != BookTranslating {
		t.Errorf("status = %q", b.Status)
	}
	if b.TotalChapters != 12 {
		t.Errorf("total chapters = %d", b.TotalChapters)
	}
	want := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	if !b.CreatedAt.Equal(want) {
		t.Errorf("created at = %v", b.CreatedAt)
	}
}

func TestParseBookMissingColumns(t *testing.T) {
	b := parseBook(map[string]any{"id": "b1"})
	if b.ID != "b1" {
		t.Errorf("id = %q", b.ID)
	}
	if b.TotalChapters != 0 || b.Title != "" || !b.CreatedAt.IsZero() {
		t.Errorf("zero values expected, got %+v", b)
	}
}

func TestParseChapter(t *testing.T) {
	c := parseChapter(map[string]any{
		"id":             "c1",
		"book_id":        "b1",
		"number":         float64(3),
		"title":          "Chapitre III",
		"original_title": "Chapter Three",
		"raw_markup":     "<p>text</p>",
	})
	if c.Number != 3 || c.BookID != "b1" || c.Title != "Chapitre III" {
		t.Errorf("chapter = %+v", c)
	}
}

func TestParseTranslatedSegment(t *testing.T) {
	s := parseTranslatedSegment(map[string]any{
		"chapter_id":        "c1",
		"address":           "html[1]/body[1]/p[2]",
		"original_text":     "Hello.",
		"original_fragment": "<p>Hello.</p>",
		"translated_text":   "Bonjour.",
		"order_index":       float64(1),
	})
	if s.Address != "html[1]/body[1]/p[2]" || s.TranslatedText != "Bonjour." || s.OrderIndex != 1 {
		t.Errorf("segment = %+v", s)
	}
}

func TestParseJob(t *testing.T) {
	t.Run("full row", func(t *testing.T) {
		job, err := parseJob(map[string]any{
			"book_id":             "b1",
			"total_chapters":      float64(10),
			"completed_chapters":  float64(4),
			"current_chapter":     float64(5),
			"current_item_offset": float64(20),
			"glossary":            `{"Napoleon": "Napoléon"}`,
			"glossary_extracted":  float64(1),
			"title_translated":    float64(0),
			"translated_title":    "",
			"status":              "translating",
			"updated_at":          "2026-08-02T09:00:00Z",
		})
		if err != nil {
			t.Fatalf("parseJob: %v", err)
		}
		if job.Status != JobTranslating || job.CompletedChapters != 4 || job.CurrentItemOffset != 20 {
			t.Errorf("job = %+v", job)
		}
		if !job.GlossaryExtracted || job.TitleTranslated {
			t.Errorf("flags = %v/%v", job.GlossaryExtracted, job.TitleTranslated)
		}
		if job.Glossary["Napoleon"] != "Napoléon" {
			t.Errorf("glossary = %v", job.Glossary)
		}
	})

	t.Run("empty glossary column yields empty map", func(t *testing.T) {
		job, err := parseJob(map[string]any{"book_id": "b1", "status": "pending"})
		if err != nil {
			t.Fatalf("parseJob: %v", err)
		}
		if job.Glossary == nil || len(job.Glossary) != 0 {
			t.Errorf("glossary = %v", job.Glossary)
		}
	})

	t.Run("corrupt glossary column errors", func(t *testing.T) {
		_, err := parseJob(map[string]any{"book_id": "b1", "glossary": "{broken"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAsInt(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
	}{
		{"float64", float64(7), 7},
		{"int64", int64(7), 7},
		{"int", 7, 7},
		{"json.Number", json.Number("7"), 7},
		{"string", "7", 0},
		{"nil", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := asInt(tc.in); got != tc.want {
				t.Errorf("asInt(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestAsBool(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want bool
	}{
		{"true", true, true},
		{"one", float64(1), true},
		{"zero", float64(0), false},
		{"int64 one", int64(1), true},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := asBool(tc.in); got != tc.want {
				t.Errorf("asBool(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
