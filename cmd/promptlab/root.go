package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "promptlab",
	Short: "Expand short ideas into image prompts with LORA suggestions",
	Long: `Promptlab turns a short creative idea into several descriptive prompt
variants for an image model, suggests a LORA style adapter with a weight,
and keeps the prompts you save in a local SQLite database.

It provides:
  - LLM-backed idea expansion with a creativity slider
  - LORA selection by tag overlap, with an LLM fallback
  - Saved prompt storage with JSON export
  - An HTTP API and CLI client for all of the above`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.promptlab/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "promptlab home directory (default: ~/.promptlab)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format and load .env files before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := api.SetOutputFormat(outputFormat); err != nil {
			return err
		}
		loadEnv()
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// loadEnv loads ./.env and then <home>/.env. Variables already set in the
// environment are never overridden.
func loadEnv() {
	files := []string{".env"}
	if h, err := home.New(homeDir); err == nil {
		files = append(files, h.EnvPath())
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("failed to load env file", "path", f, "error", err)
		}
	}
}
