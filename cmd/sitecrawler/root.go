package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/log"
)

// NewRootCmd creates the root command for sitecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Concurrent whole-site crawler",
		Long: `sitecrawler crawls entire websites from a root URL.

It discovers same-domain pages, extracts their visible text, skips
downloads, login pages and duplicates, and bounds every site by a page
ceiling and a time budget. Results are stored in a SQLite database and
summarized at the end of each batch.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewEnqueueCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger creates the sanitizing logger every command logs through.
func setupLogger(w io.Writer, verbose, jsonLog bool) *slog.Logger {
	if jsonLog {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// persistentBool reads a root persistent flag. It is false when cmd runs
// without the root command, as in tests.
func persistentBool(cmd *cobra.Command, name string) bool {
	if v, err := cmd.Flags().GetBool(name); err == nil {
		return v
	}
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// loggerFor builds the logger from the persistent flags of cmd.
func loggerFor(cmd *cobra.Command) *slog.Logger {
	return setupLogger(cmd.ErrOrStderr(), persistentBool(cmd, "verbose"), persistentBool(cmd, "json-log"))
}
