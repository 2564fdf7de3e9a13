// Package handlers implements the lookup API endpoint handlers.
//
// Endpoints:
//   - GET /api/v1/health - health check
//   - GET /api/v1/stats - process runtime statistics
//   - GET /api/v1/resolve - one-shot DNS lookup through the resolver engine
//
// All endpoints support optional API key authentication via the
// X-API-Key header when a key is configured.
package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ldevaal/wiredns/internal/config"
	"github.com/ldevaal/wiredns/internal/resolver"
)

// ResolverFactory builds a resolver for one request. The engine is not
// safe for concurrent use, so each request gets its own.
type ResolverFactory func() (*resolver.Resolver, error)

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	mu          sync.RWMutex
	newResolver ResolverFactory
}

// New creates a new Handler with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Handler {
	h := &Handler{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
	h.newResolver = func() (*resolver.Resolver, error) {
		return resolver.New(cfg.Resolver, nil)
	}
	return h
}

// SetResolverFactory overrides how per-request resolvers are built.
// Tests inject transports here.
func (h *Handler) SetResolverFactory(fn ResolverFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.newResolver = fn
}

func (h *Handler) resolverFactory() ResolverFactory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.newResolver
}
