package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/config"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/internal/lora"
)

//go:embed loras.sample.json
var sampleCatalog []byte

var catalogForce bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the local LORA catalog",
	Long: `Inspect the LORA catalog file without a running server.

Examples:
  promptlab catalog init                      # Write a sample catalog
  promptlab catalog list                      # List catalog entries
  promptlab catalog match "neon city street"  # Show the tag match for an idea`,
}

// catalogPath resolves the catalog from --config, then the home directory.
func catalogPath() (string, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	cm, err := config.NewManager(file)
	if err != nil {
		return "", err
	}
	if p := cm.Get().Catalog.Path; p != "" {
		return p, nil
	}
	return h.CatalogPath(), nil
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := catalogPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !catalogForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, sampleCatalog, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := catalogPath()
		if err != nil {
			return err
		}
		catalog, err := lora.LoadCatalog(path)
		if err != nil {
			return err
		}
		return api.Output(catalog)
	},
}

// MatchResult is the local tag match for an idea.
type MatchResult struct {
	Tokens []string `json:"tokens"`
	LoraID string   `json:"lora_id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Score  int      `json:"score"`
}

var catalogMatchCmd = &cobra.Command{
	Use:   "match <idea>",
	Short: "Show which entry shares the most tags with an idea",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := catalogPath()
		if err != nil {
			return err
		}
		catalog, err := lora.LoadCatalog(path)
		if err != nil {
			return err
		}

		idea := strings.Join(args, " ")
		res := MatchResult{Tokens: lora.Tokenize(idea)}
		if best, score, ok := lora.SelectByTags(idea, catalog); ok {
			res.LoraID = best.ID
			res.Name = best.Name
			res.Score = score
		}
		return api.Output(res)
	},
}

func init() {
	catalogInitCmd.Flags().BoolVar(&catalogForce, "force", false, "Overwrite an existing file")

	catalogCmd.AddCommand(catalogInitCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogMatchCmd)
	rootCmd.AddCommand(catalogCmd)
}
