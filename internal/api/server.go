package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"antroute/internal/config"
	"antroute/internal/store"
	"antroute/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker
	Config config.Config
	Logger *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer wires the store and broker named by cfg. An empty DatabaseURL
// selects the in-memory store; an empty RedisURL the in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.Server.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Server.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Server.Migrate {
			if err := sp.MigrateDir(cfg.Server.MigrationsDir); err != nil {
				_ = sp.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.Server.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.Server.RedisURL)
		if err != nil {
			log.Printf("redis broker unavailable, using in-process broker: %v", err)
		} else {
			broker = rb
		}
	}
	return newServer(cfg, s, broker), nil
}

func newServer(cfg config.Config, s store.Store, b EventBroker) *Server {
	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Broker:  b,
		Config:  cfg,
		Logger:  log.Default(),
		cancels: map[string]context.CancelFunc{},
	}
}

// NewWebhookWorker creates a background worker for run callbacks.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.Webhooks.MaxAttempts)
}

// Shutdown cancels every run in flight and waits for them to be recorded.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Printf("broker close: %v", err)
		}
	}
	if c, ok := s.Store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Server) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

// cancelRun reports whether id was running.
func (s *Server) cancelRun(id string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Routes builds the service mux with its middleware chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /progress, /ws, /deliveries
	mux.HandleFunc("/v1/solutions/check", s.CheckHandler)
	mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)

	// Health and ops
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	return LoggingMiddleware(RateLimit(s.Config.Rate.RPS, s.Config.Rate.Burst, mux))
}
