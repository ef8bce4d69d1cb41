package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(s http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Root(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), &fakeExecutor{})

	rec := get(s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"name": "PostgreSQL MCP Server",
		"version": "1.0.0",
		"protocol": "mcp",
		"protocol_version": "2024-11-05",
		"transports": ["sse", "http"],
		"database": {"host": "mcp-postgres-db", "database": "demodb"},
		"status": "running"
	}`, rec.Body.String())
}

func TestServer_RootSQLite(t *testing.T) {
	cfg := newSQLiteConfig(t)
	s := newTestServer(t, cfg, &fakeExecutor{})

	var desc ServerDescriptor
	require.NoError(t, json.Unmarshal(get(s, "/").Body.Bytes(), &desc))
	assert.Equal(t, DatabaseDescriptor{Host: "localhost", Database: cfg.Database.SQLitePath}, desc.Database)
}

func TestServer_UnknownPath(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), &fakeExecutor{})
	assert.Equal(t, http.StatusNotFound, get(s, "/nope").Code)
}

func TestServer_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, DefaultConfig(), &fakeExecutor{})

		rec := get(s, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy","database":"connected"}`, rec.Body.String())
	})

	t.Run("unhealthy", func(t *testing.T) {
		s := newTestServer(t, DefaultConfig(), &fakeExecutor{
			pingErr: errors.New("failed to connect to database: dial tcp: connection refused"),
		})

		rec := get(s, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unhealthy","error":"failed to connect to database: dial tcp: connection refused"}`, rec.Body.String())
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := newSQLiteConfig(t)
		s := newTestServer(t, cfg, newSQLiteExecutor(t, cfg))
		assert.Equal(t, http.StatusOK, get(s, "/health").Code)
	})
}

func TestServer_CORSOnEveryResponse(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), &fakeExecutor{pingErr: errors.New("down")})

	for _, path := range []string{"/", "/health", "/mcp"} {
		rec := get(s, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestServer_RequestID(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), &fakeExecutor{})

	first := get(s, "/").Header().Get("X-Request-Id")
	second := get(s, "/").Header().Get("X-Request-Id")

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestServer_ListenAndServeShutsDown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	s := newTestServer(t, cfg, &fakeExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
