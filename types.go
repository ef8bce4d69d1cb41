package main

import "encoding/json"

// Protocol and server version constants
const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "PostgreSQL MCP Server"
	ServerVersion   = "1.0.0"
)

// MCP Error codes
const (
	ParseError     = -32700
	MethodNotFound = -32601
	InternalError  = -32603
)

// defaultID is echoed when the envelope carries no id at all.
var defaultID = json.RawMessage("1")

// JSON-RPC types

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// MCP Protocol types

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tool types

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Resource and prompt listings are always empty.

type ListResourcesResult struct {
	Resources []any `json:"resources"`
}

type ListPromptsResult struct {
	Prompts []any `json:"prompts"`
}

// HTTP descriptor types

type ServerDescriptor struct {
	Name            string             `json:"name"`
	Version         string             `json:"version"`
	Protocol        string             `json:"protocol"`
	ProtocolVersion string             `json:"protocol_version"`
	Transports      []string           `json:"transports"`
	Database        DatabaseDescriptor `json:"database"`
	Status          string             `json:"status"`
}

type DatabaseDescriptor struct {
	Host     string `json:"host"`
	Database string `json:"database"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Error    string `json:"error,omitempty"`
}
