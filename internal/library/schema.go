package library

import (
	"context"
	"fmt"

	"github.com/versobook/verso/internal/store"
)

// schemaStatements create the library tables. Idempotent; run at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		original_title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,
		status TEXT NOT NULL,
		total_chapters INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		original_title TEXT NOT NULL,
		raw_markup TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chapters_book ON chapters (book_id, number)`,
	`CREATE TABLE IF NOT EXISTS segment_cache (
		chapter_id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		segments TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS translated_segments (
		chapter_id TEXT NOT NULL,
		address TEXT NOT NULL,
		original_text TEXT NOT NULL,
		original_fragment TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		PRIMARY KEY (chapter_id, address)
	)`,
	`CREATE TABLE IF NOT EXISTS translation_jobs (
		book_id TEXT PRIMARY KEY,
		total_chapters INTEGER NOT NULL,
		completed_chapters INTEGER NOT NULL DEFAULT 0,
		current_chapter INTEGER NOT NULL DEFAULT 1,
		current_item_offset INTEGER NOT NULL DEFAULT 0,
		glossary TEXT NOT NULL DEFAULT '{}',
		glossary_extracted INTEGER NOT NULL DEFAULT 0,
		title_translated INTEGER NOT NULL DEFAULT 0,
		translated_title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,
}

// EnsureSchema creates the library tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := make([]store.Statement, 0, len(schemaStatements))
	for _, sql := range schemaStatements {
		stmts = append(stmts, store.Statement{SQL: sql})
	}
	if _, err := s.db.Batch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
