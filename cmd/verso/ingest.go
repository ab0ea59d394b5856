package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/ingest"
)

var (
	ingestTitle  string
	ingestSource string
	ingestTarget string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <book.epub>",
	Short: "Import an EPUB and prepare it for translation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		cfg, lib, err := openLibrary(ctx, logger)
		if err != nil {
			return err
		}

		source := ingestSource
		if source == "" {
			source = cfg.Defaults.SourceLanguage
		}
		target := ingestTarget
		if target == "" {
			target = cfg.Defaults.TargetLanguage
		}

		extractor := extract.NewExtractorWithMinLength(cfg.Pipeline.MinSegmentLength)
		res, err := ingest.Ingest(ctx, lib, extractor, ingest.Request{
			EPUBPath:   args[0],
			Title:      ingestTitle,
			SourceLang: source,
			TargetLang: target,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Imported %q (%s -> %s)\n", res.Title, source, target)
		fmt.Printf("  Book ID:  %s\n", res.BookID)
		fmt.Printf("  Chapters: %d\n", res.Chapters)
		fmt.Printf("  Segments: %d\n", res.Segments)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "override the book title")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source language (default from config)")
	ingestCmd.Flags().StringVar(&ingestTarget, "target", "", "target language (default from config)")
}
