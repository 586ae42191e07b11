package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackzampolin/promptlab/internal/api"
	"github.com/jackzampolin/promptlab/internal/config"
	"github.com/jackzampolin/promptlab/internal/expand"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/internal/lab"
	"github.com/jackzampolin/promptlab/internal/llmcall"
	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/metrics"
	"github.com/jackzampolin/promptlab/internal/providers"
	"github.com/jackzampolin/promptlab/internal/server/endpoints"
	"github.com/jackzampolin/promptlab/internal/storage"
	"github.com/jackzampolin/promptlab/internal/svcctx"
)

// Server is the main promptlab HTTP server.
// It opens storage and loads the LORA catalog on start, and rebuilds the
// LLM client and session service when the config or catalog file changes.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	home       *home.Dir
	client     providers.Completer
	metrics    *metrics.Recorder
	logger     *slog.Logger

	store     *storage.Store
	callStore *llmcall.Store

	// reloadMu serializes rebuilds; the client is reused while its
	// settings are unchanged so its rate limiter keeps its history.
	reloadMu  sync.Mutex
	llmConfig config.LLMConfig
	llmClient providers.Completer

	// watchMu guards the catalog watcher, which follows catalog.path.
	watchMu      sync.Mutex
	watchedPath  string
	stopWatching context.CancelFunc

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host, then 127.0.0.1)
	Host string
	// Port is the port to listen on (default: server.port, then 8080)
	Port string
	// Home locates the database, outputs and catalog when the config
	// leaves them empty.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Client overrides the configured LLM client (tests)
	Client providers.Completer
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	current := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		current = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = current.Server.Host
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = current.Server.Port
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		client:    cfg.Client,
		metrics:   metrics.NewRecorder(),
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // generation may wait on the rate limiter twice
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens storage, loads the catalog and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initialize(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			if err := s.reload(ctx, c, nil); err != nil {
				s.logger.Error("failed to apply config change", "error", err)
				return
			}
			s.watchCatalog(ctx, s.catalogPath(c))
			s.logger.Info("services reloaded from config")
		})
	}

	s.watchCatalog(ctx, s.catalogPath(s.currentConfig()))

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// watchCatalog moves the catalog watcher to path, stopping the watcher on
// any previous path. It is a no-op when path is already watched.
func (s *Server) watchCatalog(ctx context.Context, path string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if path == s.watchedPath && s.stopWatching != nil {
		return
	}
	if s.stopWatching != nil {
		s.stopWatching()
		s.stopWatching = nil
	}
	s.watchedPath = path

	watchCtx, cancel := context.WithCancel(ctx)
	err := lora.WatchCatalog(watchCtx, path, s.logger, func(c lora.Catalog) {
		if err := s.reload(ctx, s.currentConfig(), c); err != nil {
			s.logger.Error("failed to apply catalog change", "error", err)
		}
	})
	if err != nil {
		cancel()
		s.logger.Warn("catalog changes will not be picked up", "path", path, "error", err)
		return
	}
	s.stopWatching = cancel
	s.logger.Debug("watching catalog", "path", path)
}

// watchedCatalog returns the path the catalog watcher follows.
func (s *Server) watchedCatalog() string {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return s.watchedPath
}

// initialize opens the stores and builds the first set of services.
func (s *Server) initialize(ctx context.Context) error {
	cfg := s.currentConfig()

	dbPath := cfg.Storage.DB
	if dbPath == "" {
		dbPath = s.home.DatabasePath()
	}
	outputs := cfg.Storage.OutputsDir
	if outputs == "" {
		outputs = s.home.OutputsPath()
	}

	store, err := storage.New(ctx, storage.Config{
		Path:       dbPath,
		OutputsDir: outputs,
		Logger:     s.logger,
		Metrics:    s.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	s.store = store

	// Calls share the record database file in their own table.
	callStore, err := llmcall.NewStore(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open llm call store: %w", err)
	}
	s.callStore = callStore

	s.logger.Info("storage ready", "db", dbPath, "outputs", outputs)
	return s.reload(ctx, cfg, nil)
}

// reload rebuilds the LLM client, adapter and session service. A nil
// catalog is read from the configured catalog file.
func (s *Server) reload(ctx context.Context, cfg *config.Config, catalog lora.Catalog) error {
	if catalog == nil {
		var err error
		catalog, err = s.loadCatalog(cfg)
		if err != nil {
			return err
		}
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	client := s.client
	if client == nil {
		if s.llmClient == nil || s.llmConfig != cfg.LLM {
			s.llmClient = newClient(cfg.LLM, s.logger)
			s.llmConfig = cfg.LLM
		}
		client = s.llmClient
	}

	resolver, err := expand.NewPrompts(cfg.Prompts.Overrides(), s.logger)
	if err != nil {
		return fmt.Errorf("invalid prompt templates: %w", err)
	}

	adapter := expand.New(expand.Config{
		Client:    client,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Variants:  cfg.Defaults.Variants,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Calls:     llmcall.NewRecorder(s.callStore, s.logger),
		Prompts:   resolver,
	})

	svc := lab.New(lab.Config{
		Adapter:     adapter,
		Store:       s.store,
		Catalog:     catalog,
		Variants:    cfg.Defaults.Variants,
		LLMFallback: cfg.Defaults.LLMFallback,
		Logger:      s.logger,
		Metrics:     s.metrics,
	})

	services := &svcctx.Services{
		Lab:           svc,
		Store:         s.store,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
		Metrics:       s.metrics,
		LLMCallStore:  s.callStore,
	}

	s.mu.Lock()
	s.services = services
	s.mu.Unlock()

	s.logger.Info("services ready", "client", adapter.ClientName(), "loras", len(catalog))
	return nil
}

// newClient picks the HTTP client when an endpoint and key are configured
// and the offline stub otherwise.
func newClient(cfg config.LLMConfig, logger *slog.Logger) providers.Completer {
	if cfg.UseStub() {
		logger.Warn("no LLM endpoint configured, using stub client")
		return providers.NewStubClient()
	}
	return providers.NewOpenRouterClient(providers.OpenRouterConfig{
		URL:          cfg.URL,
		APIKey:       cfg.ResolvedAPIKey(),
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout(),
		MinInterval:  cfg.MinCallInterval(),
		Logger:       logger,
	})
}

func (s *Server) catalogPath(cfg *config.Config) string {
	if cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return s.home.CatalogPath()
}

// loadCatalog reads the catalog file. A missing file yields an empty
// catalog so the server still expands ideas.
func (s *Server) loadCatalog(cfg *config.Config) (lora.Catalog, error) {
	path := s.catalogPath(cfg)
	catalog, err := lora.LoadCatalog(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("no LORA catalog found, selection disabled", "path", path)
		return lora.Catalog{}, nil
	}
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func (s *Server) currentConfig() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Services returns the current services.
// Returns nil if the server hasn't started yet.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Metrics returns the metrics recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.metrics
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		services := s.Services()
		if services == nil {
			// Config, logger and metrics are usable before init.
			services = &svcctx.Services{
				ConfigManager: s.configMgr,
				Logger:        s.logger,
				Home:          s.home,
				Metrics:       s.metrics,
			}
		}
		ctx = svcctx.WithServices(ctx, services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if storage or the session service aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := s.Services()
		if services == nil || services.Lab == nil || services.Store == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
