// Package mcp defines the core types for the Model Context Protocol (MCP)
// as used by the bridge: the JSON-RPC 2.0 envelope, tool descriptors, and
// content payloads.
//
// The bridge only needs the tool-facing subset of the protocol (initialize,
// tools/list, tools/call), so that is all this package models. For the
// OpenAPI conversion layer, see the convert package. For the HTTP transport,
// see the transport package.
package mcp

import "encoding/json"

// JSON-RPC 2.0 error codes used by the protocol server.
const (
	PARSE_ERROR      = -32700
	INVALID_REQUEST  = -32600
	METHOD_NOT_FOUND = -32601
	INVALID_PARAMS   = -32602
	INTERNAL_ERROR   = -32603
)

// LatestProtocolVersion is the MCP protocol revision the server reports
// during the initialize handshake.
const LatestProtocolVersion = "2024-11-05"

// JSONRPCMessage is the wire envelope for every message exchanged with a
// client. Exactly one of Method (requests/notifications), Result, or Error
// (responses) is populated.
type JSONRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// IsNotification reports whether the message is a notification (a request
// without an id, which must not be answered).
func (m *JSONRPCMessage) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// JSONRPCError is the error member of a JSON-RPC response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResponse builds a success response for the given request id.
func NewResponse(id any, result any) JSONRPCMessage {
	return JSONRPCMessage{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id any, code int, message string) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

// NewParseError builds the error envelope forwarded when a client message
// cannot be decoded. The request id is unknown by definition.
func NewParseError(detail string) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      "unknown",
		Error: &JSONRPCError{
			Code:    PARSE_ERROR,
			Message: "Parse error",
			Data:    map[string]any{"validation_error": detail},
		},
	}
}

// Tool describes a callable unit exposed to MCP clients: its name, a
// human-readable description, and a JSON Schema for its arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is implemented by every content item a tool call can return.
type Content interface {
	ContentType() string
}

// TextContent is a text payload in a tool result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextContent) ContentType() string { return "text" }

// NewTextContent wraps text as a one-element content sequence.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// CallToolParams are the params of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the result of a tools/call request. Tool execution
// failures are reported with IsError set, never as a JSON-RPC error, so the
// client sees a failed call rather than a transport fault.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ListToolsResult is the result of a tools/list request.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities advertises what the server supports. The bridge only
// ever offers tools.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability flags tool support in the capability set.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeResult is the result of the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}
