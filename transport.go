package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const eventStreamType = "text/event-stream"

// keepAlive is a bounded, cancellable sequence of timed emissions.
type keepAlive struct {
	count    int
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
}

func newKeepAlive(count int, interval time.Duration) keepAlive {
	return keepAlive{count: count, interval: interval, after: time.After}
}

// run calls emit count times, waiting interval before each call. It stops
// early when ctx is done or emit fails.
func (k keepAlive) run(ctx context.Context, emit func() error) error {
	for i := 0; i < k.count; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.after(k.interval):
		}
		if err := emit(); err != nil {
			return err
		}
	}
	return nil
}

// Transport serves the /mcp endpoint. Each request is answered either as one
// JSON document or as a Server-Sent-Events stream.
type Transport struct {
	router    *Router
	logger    Logger
	keepAlive keepAlive
}

// NewTransport creates the /mcp handler.
func NewTransport(router *Router, logger Logger, ka keepAlive) *Transport {
	return &Transport{router: router, logger: logger, keepAlive: ka}
}

// wantsStream reports whether r is answered as an event stream: the client
// accepts one, or the request is a bodyless discovery GET.
func wantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), eventStreamType) || r.Method == http.MethodGet
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := t.logger.WithContext(r.Context()).WithFields(map[string]any{
		"request_id":  requestIDFromContext(r.Context()),
		"http_method": r.Method,
	})

	switch r.Method {
	case http.MethodOptions:
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if wantsStream(r) {
		t.serveStream(w, r, log)
		return
	}
	t.serveUnary(w, r, log)
}

func (t *Transport) serveUnary(w http.ResponseWriter, r *http.Request, log Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			log.WithErr(err).Error("HTTP handler error")
			writeJSON(w, http.StatusInternalServerError, errorResponse(nil, InternalError, err.Error()), log)
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.WithErr(err).Error("Failed to read request body")
		writeJSON(w, http.StatusInternalServerError, errorResponse(nil, InternalError, err.Error()), log)
		return
	}

	resp := t.router.HandleMessage(r.Context(), body)

	status := http.StatusOK
	if resp.Error != nil && resp.Error.Code == InternalError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp, log)
}

func (t *Transport) serveStream(w http.ResponseWriter, r *http.Request, log Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("Streaming unsupported")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", eventStreamType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := &streamWriter{w: w, flusher: flusher}

	err := t.produceFrames(r, sw, log)
	if err == nil {
		return
	}
	if sw.failed {
		log.WithErr(err).Warn("Stream write failed, closing stream")
		return
	}
	log.WithErr(err).Error("SSE generator error")
	if werr := sw.message(errorResponse(nil, InternalError, "Internal error: "+err.Error())); werr != nil {
		log.WithErr(werr).Warn("Failed to send error frame")
	}
}

// produceFrames writes the protocol frames of one stream. A recovered panic
// is returned as an error.
func (t *Transport) produceFrames(r *http.Request, sw *streamWriter, log Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()

	if r.Method == http.MethodGet {
		if err := sw.message(capabilitiesMessage()); err != nil {
			return err
		}
		kaErr := t.keepAlive.run(r.Context(), sw.ping)
		if errors.Is(kaErr, context.Canceled) || errors.Is(kaErr, context.DeadlineExceeded) {
			log.Debug("Client went away during keep-alive")
			return nil
		}
		return kaErr
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	return sw.message(t.router.HandleMessage(r.Context(), body))
}

// streamWriter writes SSE frames and flushes after each one.
type streamWriter struct {
	w       io.Writer
	flusher http.Flusher
	failed  bool
}

func (s *streamWriter) message(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return s.write("data: " + string(data) + "\n\n")
}

func (s *streamWriter) ping() error {
	return s.write(": ping\n\n")
}

func (s *streamWriter) write(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		s.failed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any, log Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithErr(err).Error("Failed to marshal response")
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse(nil, InternalError, err.Error()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.WithErr(err).Warn("Failed to write response")
	}
}
