// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/promptlab/internal/config"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/internal/lab"
	"github.com/jackzampolin/promptlab/internal/llmcall"
	"github.com/jackzampolin/promptlab/internal/metrics"
	"github.com/jackzampolin/promptlab/internal/storage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Lab           *lab.Service
	Store         *storage.Store
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
	Metrics       *metrics.Recorder
	LLMCallStore  *llmcall.Store
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// from applies pick to the services in ctx, or returns the zero value.
func from[T any](ctx context.Context, pick func(*Services) T) T {
	if s := ServicesFrom(ctx); s != nil {
		return pick(s)
	}
	var zero T
	return zero
}

// LabFrom returns the session service, nil before initialization.
func LabFrom(ctx context.Context) *lab.Service {
	return from(ctx, func(s *Services) *lab.Service { return s.Lab })
}

// StoreFrom returns the prompt store, nil before initialization.
func StoreFrom(ctx context.Context) *storage.Store {
	return from(ctx, func(s *Services) *storage.Store { return s.Store })
}

func ConfigManagerFrom(ctx context.Context) *config.Manager {
	return from(ctx, func(s *Services) *config.Manager { return s.ConfigManager })
}

// LoggerFrom returns the request logger, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l := from(ctx, func(s *Services) *slog.Logger { return s.Logger }); l != nil {
		return l
	}
	return slog.Default()
}

func HomeFrom(ctx context.Context) *home.Dir {
	return from(ctx, func(s *Services) *home.Dir { return s.Home })
}

func MetricsFrom(ctx context.Context) *metrics.Recorder {
	return from(ctx, func(s *Services) *metrics.Recorder { return s.Metrics })
}

func LLMCallStoreFrom(ctx context.Context) *llmcall.Store {
	return from(ctx, func(s *Services) *llmcall.Store { return s.LLMCallStore })
}
