package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Server configuration defaults
const (
	HealthCheckTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

// MCPServer wires the protocol endpoint, the descriptor and the health check
// onto one HTTP handler.
type MCPServer struct {
	cfg       Config
	executor  QueryExecutor
	router    *Router
	transport *Transport
	logger    Logger
	handler   http.Handler
}

// NewMCPServer builds the server around executor. The tool registry is
// compiled here, once per process.
func NewMCPServer(cfg Config, executor QueryExecutor, logger Logger) (*MCPServer, error) {
	adapter, err := adapterFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	registry, err := NewToolRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	dispatcher := NewToolDispatcher(registry, adapter, executor, logger)
	router := NewRouter(registry, dispatcher, logger)

	s := &MCPServer{
		cfg:       cfg,
		executor:  executor,
		router:    router,
		transport: NewTransport(router, logger, newKeepAlive(cfg.KeepAliveCount, cfg.KeepAliveInterval)),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/mcp", s.transport)

	s.handler = withRequestID(withCORS(mux))
	return s, nil
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live listener.
func (s *MCPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the protocol router for non-HTTP transports.
func (s *MCPServer) Router() *Router { return s.router }

func (s *MCPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServerDescriptor{
		Name:            ServerName,
		Version:         ServerVersion,
		Protocol:        "mcp",
		ProtocolVersion: ProtocolVersion,
		Transports:      []string{"sse", "http"},
		Database:        databaseIdentity(s.cfg.Database),
		Status:          "running",
	}, s.logger)
}

func (s *MCPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if err := s.executor.Ping(ctx); err != nil {
		s.logger.WithErr(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthStatus{
			Status: "unhealthy",
			Error:  err.Error(),
		}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Database: "connected"}, s.logger)
}

func databaseIdentity(db DatabaseConfig) DatabaseDescriptor {
	if db.Driver == "sqlite" || db.Driver == "sqlite3" {
		return DatabaseDescriptor{Host: "localhost", Database: db.SQLitePath}
	}
	return DatabaseDescriptor{Host: db.Host, Database: db.Name}
}

// ListenAndServe serves HTTP on the configured address until ctx is
// cancelled, then shuts down gracefully.
func (s *MCPServer) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.WithFields(map[string]any{"addr": s.cfg.HTTPAddr}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		s.logger.Info("Server gracefully shut down")
		return ctx.Err()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Access-Control-Allow-Headers", "*")
}

// withCORS allows any origin, method and header on every response.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// withRequestID tags each request with a fresh ID, echoed in X-Request-Id.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
