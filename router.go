package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Router parses JSON-RPC envelopes and dispatches them to method handlers.
// It holds no per-call state; concurrent use is safe.
type Router struct {
	registry   *ToolRegistry
	dispatcher *ToolDispatcher
	logger     Logger
}

// NewRouter creates a router over the tool registry and dispatcher.
func NewRouter(registry *ToolRegistry, dispatcher *ToolDispatcher, logger Logger) *Router {
	return &Router{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleMessage parses one raw envelope and routes it. It always returns a
// response; a body that is not a JSON object yields a parse error without id.
func (r *Router) HandleMessage(ctx context.Context, data []byte) *JSONRPCResponse {
	req, err := parseRequest(data)
	if err != nil {
		r.logger.WithContext(ctx).WithErr(err).Warn("Failed to parse request")
		return errorResponse(nil, ParseError, "Parse error: Invalid JSON")
	}
	return r.Handle(ctx, req)
}

func parseRequest(data []byte) (*JSONRPCRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("request body is not a JSON object")
	}
	var req JSONRPCRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Handle routes a parsed request. Any fault while producing the result,
// including a panic, becomes an InternalError response.
func (r *Router) Handle(ctx context.Context, req *JSONRPCRequest) (resp *JSONRPCResponse) {
	id := req.ID
	if len(id) == 0 {
		id = defaultID
	}

	ctx, span := StartSpan(ctx, "Router.Handle")
	span.SetAttributes(attribute.String("rpc.method", req.Method))
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": req.Method,
		"id":     string(id),
	})
	log.Info("MCP request")

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			log.WithErr(err).Error("Panic while handling request")
			span.RecordError(err)
			resp = errorResponse(id, InternalError, err.Error())
		}
	}()

	var result any
	var err error

	switch req.Method {
	case "initialize":
		result = initializeResult()
	case "tools/list":
		result = &ListToolsResult{Tools: r.registry.ListTools()}
	case "resources/list":
		result = &ListResourcesResult{Resources: []any{}}
	case "prompts/list":
		result = &ListPromptsResult{Prompts: []any{}}
	case "tools/call":
		result, err = r.handleCallTool(ctx, req.Params)
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: InternalError, Message: err.Error()}
		}
		if rpcErr.Code == InternalError {
			log.WithErr(err).Error("Request failed")
			span.RecordError(err)
		} else {
			log.WithErr(err).Warn("Request rejected")
		}
		return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}

	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (r *Router) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, error) {
	var callParams CallToolParams
	if len(params) > 0 && !bytes.Equal(params, []byte("null")) {
		if err := json.Unmarshal(params, &callParams); err != nil {
			return nil, fmt.Errorf("invalid tools/call params: %w", err)
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tool":      callParams.Name,
		"arguments": callParams.Arguments,
	}).Debug("Tool call")

	result := r.dispatcher.Call(ctx, callParams.Name, callParams.Arguments)

	text, err := result.Text()
	if err != nil {
		return nil, err
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
	}, nil
}

func initializeResult() *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
			Prompts:   &PromptsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
	}
}

// capabilitiesMessage is the id-less frame sent to a bare discovery stream.
func capabilitiesMessage() *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", Result: initializeResult()}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}
