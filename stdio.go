package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StdioTransport serves newline-delimited JSON-RPC envelopes, one response
// line per request line.
type StdioTransport struct {
	router *Router
	logger Logger
	in     io.Reader
	out    io.Writer
}

// NewStdioTransport creates a transport reading from in and writing to out.
func NewStdioTransport(router *Router, logger Logger, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{router: router, logger: logger, in: in, out: out}
}

// Run serves until EOF on the input or ctx is cancelled. An input that is an
// io.Closer is closed on cancellation so a blocked read returns.
func (s *StdioTransport) Run(ctx context.Context) error {
	if c, ok := s.in.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := c.Close(); err != nil {
				s.logger.WithErr(err).Warn("Failed to close input")
			}
		})
		defer stop()
	}

	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if werr := s.respond(ctx, []byte(trimmed)); werr != nil {
				return werr
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func (s *StdioTransport) respond(ctx context.Context, msg []byte) error {
	response := s.router.HandleMessage(ctx, msg)
	responseBytes, err := json.Marshal(response)
	if err != nil {
		s.logger.WithErr(err).Error("Failed to marshal response")
		return nil
	}
	if _, err := fmt.Fprintln(s.out, string(responseBytes)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
