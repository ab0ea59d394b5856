package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/versobook/verso/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "verso",
	Short: "Resumable EPUB translation pipeline",
	Long: `Verso imports EPUB books, extracts their text into stable addressable
segments, and translates them chapter by chapter through an LLM backend.

Translation runs checkpoint their progress, so an interrupted run resumes
from where it stopped instead of starting over.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.verso/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "verso home directory (default: ~/.verso)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(versionCmd, initCmd, ingestCmd, translateCmd, statusCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
