package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
)

//go:embed templates/sitecrawler.yaml
var configTemplate embed.FS

// templatePath is the template's path inside configTemplate.
const templatePath = "templates/sitecrawler.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sitecrawler configuration file",
		Long: `Init writes a commented .sitecrawler configuration file.

The file holds per-site overrides of the crawl limits: page ceiling,
workers, time budget, request rate and User-Agent.

Examples:
  # Create .sitecrawler in the current directory
  sitecrawler init

  # Create the file at a specific path
  sitecrawler init -o myconfig.yaml

  # Overwrite an existing file
  sitecrawler init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	r := &flagReader{flags: cmd.Flags()}
	outputPath := r.String("output")
	force := r.Bool("force")
	if r.err != nil {
		return r.err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to override per site:")
	fmt.Fprintln(out, "  - page ceiling and worker count")
	fmt.Fprintln(out, "  - time budget and request rate")
	fmt.Fprintln(out, "  - User-Agent")
	return nil
}
