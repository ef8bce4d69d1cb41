package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeExecutor is a QueryExecutor that records queries and replays a canned
// outcome.
type fakeExecutor struct {
	mu       sync.Mutex
	queries  []string
	outcome  *QueryOutcome
	err      error
	pingErr  error
	panicMsg string
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) (*QueryOutcome, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome == nil {
		return &QueryOutcome{ReadLike: true, Rows: [][]any{}}, nil
	}
	return f.outcome, nil
}

func (f *fakeExecutor) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeExecutor) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// instantAfter fires immediately, so keep-alive sequences run without delay.
func instantAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestServer(t *testing.T, cfg Config, exec QueryExecutor) *MCPServer {
	t.Helper()
	s, err := NewMCPServer(cfg, exec, NewNullLogger())
	require.NoError(t, err)
	s.transport.keepAlive.after = instantAfter
	return s
}

// newSQLiteConfig points the sqlite adapter at a fresh temp database file.
func newSQLiteConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func newSQLiteExecutor(t *testing.T, cfg Config) *SQLExecutor {
	t.Helper()
	adapter, err := adapterFor(cfg.Database.Driver)
	require.NoError(t, err)
	return NewSQLExecutor(adapter, cfg.Database, NewNullLogger())
}

func mustExec(t *testing.T, exec QueryExecutor, query string) {
	t.Helper()
	_, err := exec.Execute(context.Background(), query)
	require.NoError(t, err)
}

// decodeToolText unpacks the ToolResult JSON carried by a tools/call result.
func decodeToolText(t *testing.T, resp *JSONRPCResponse) map[string]any {
	t.Helper()
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(*CallToolResult)
	require.True(t, ok, "result is %T", resp.Result)
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	return out
}
