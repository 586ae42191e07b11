package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptlab/internal/config"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/internal/server"
)

var (
	serveHost  string
	servePort  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the promptlab server",
	Long: `Start the promptlab HTTP server.

The server opens the saved prompt database, loads the LORA catalog and
serves the API. Config and catalog files are watched and reloaded on change.
Without an LLM endpoint and API key a local stub answers instead.

The server provides:
  - /health, /ready, /status - Health and status checks
  - /metrics                 - Prometheus metrics
  - /api/...                 - Generation, LORAs, saved prompts, call history

Examples:
  promptlab serve                    # Start on default port 8080
  promptlab serve --port 3000        # Start on custom port
  promptlab serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Prefer an explicit --config, then the home config file
		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		cm, err := config.NewManager(file)
		if err != nil {
			return err
		}
		cm.SetLogger(logger)
		cm.WatchConfig()
		if f := cm.ConfigFile(); f != "" {
			logger.Info("loaded config", "path", f)
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host setting)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port setting)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
