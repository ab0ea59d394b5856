package library

import (
	"encoding/json"
	"fmt"
	"time"
)

// Row parsing. The remote store returns rows as JSON objects, so numbers
// arrive as float64 and booleans as 0/1 integers.

func parseBook(row map[string]any) *Book {
	b := &Book{
		ID:             asString(row["id"]),
		Title:          asString(row["title"]),
		OriginalTitle:  asString(row["original_title"]),
		Author:         asString(row["author"]),
		SourceLanguage: asString(row["source_language"]),
		TargetLanguage: asString(row["target_language"]),
		Status:         BookStatus(asString(row["status"])),
		TotalChapters:  asInt(row["total_chapters"]),
	}
	if t, err := time.Parse(time.RFC3339, asString(row["created_at"])); err == nil {
		b.CreatedAt = t
	}
	return b
}

func parseChapter(row map[string]any) *Chapter {
	return &Chapter{
		ID:            asString(row["id"]),
		BookID:        asString(row["book_id"]),
		Number:        asInt(row["number"]),
		Title:         asString(row["title"]),
		OriginalTitle: asString(row["original_title"]),
		RawMarkup:     asString(row["raw_markup"]),
	}
}

func parseTranslatedSegment(row map[string]any) *TranslatedSegment {
	return &TranslatedSegment{
		ChapterID:        asString(row["chapter_id"]),
		Address:          asString(row["address"]),
		OriginalText:     asString(row["original_text"]),
		OriginalFragment: asString(row["original_fragment"]),
		TranslatedText:   asString(row["translated_text"]),
		OrderIndex:       asInt(row["order_index"]),
	}
}

func parseJob(row map[string]any) (*TranslationJob, error) {
	job := &TranslationJob{
		BookID:            asString(row["book_id"]),
		TotalChapters:     asInt(row["total_chapters"]),
		CompletedChapters: asInt(row["completed_chapters"]),
		CurrentChapter:    asInt(row["current_chapter"]),
		CurrentItemOffset: asInt(row["current_item_offset"]),
		GlossaryExtracted: asBool(row["glossary_extracted"]),
		TitleTranslated:   asBool(row["title_translated"]),
		TranslatedTitle:   asString(row["translated_title"]),
		Status:            JobStatus(asString(row["status"])),
		ErrorMessage:      asString(row["error_message"]),
	}

	glossaryRaw := asString(row["glossary"])
	if glossaryRaw != "" {
		if err := json.Unmarshal([]byte(glossaryRaw), &job.Glossary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job glossary: %w", err)
		}
	}
	if job.Glossary == nil {
		job.Glossary = map[string]string{}
	}

	if t, err := time.Parse(time.RFC3339, asString(row["updated_at"])); err == nil {
		job.UpdatedAt = t
	}
	return job, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
