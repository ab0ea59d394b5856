package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var translateBackend string

var translateCmd = &cobra.Command{
	Use:   "translate <book-id>",
	Short: "Run the translation job for a book, resuming from its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		cfg, lib, err := openLibrary(ctx, logger)
		if err != nil {
			return err
		}
		svc, err := newJobService(cfg, lib, translateBackend, logger)
		if err != nil {
			return err
		}

		progress, err := svc.Run(ctx, args[0])
		if err != nil {
			return fmt.Errorf("translation run failed: %w", err)
		}

		fmt.Printf("Status:   %s\n", progress.Status)
		fmt.Printf("Chapters: %d/%d\n", progress.CompletedChapters, progress.TotalChapters)
		if progress.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", progress.ErrorMessage)
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVar(&translateBackend, "backend", "", "backend name from config (default from config)")
}
