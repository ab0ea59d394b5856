package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/versobook/verso/internal/library"
)

var statusCmd = &cobra.Command{
	Use:   "status <book-id>",
	Short: "Show translation progress for a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		_, lib, err := openLibrary(ctx, logger)
		if err != nil {
			return err
		}

		job, err := lib.GetJob(ctx, args[0])
		if errors.Is(err, library.ErrNotFound) {
			fmt.Println("Status: not_found")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Chapters: %d/%d\n", job.CompletedChapters, job.TotalChapters)
		if job.Status == library.JobTranslating {
			fmt.Printf("Current:  chapter %d, segment offset %d\n", job.CurrentChapter, job.CurrentItemOffset)
		}
		if job.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", job.ErrorMessage)
		}
		return nil
	},
}
