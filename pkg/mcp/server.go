package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// ToolProvider is the capability a Server dispatches tool requests to. It is
// registered once at construction; there is no dynamic handler registration.
type ToolProvider interface {
	// ListTools returns the currently exposed tool set.
	ListTools(ctx context.Context) []Tool
	// CallTool executes the named tool. An error return is surfaced to the
	// client as a failed tool call, not as a protocol error.
	CallTool(ctx context.Context, name string, arguments map[string]any) ([]Content, error)
}

// Server drives the JSON-RPC exchange for one or more client sessions. It is
// stateless apart from its identity and provider, so a single Server may be
// shared by any number of concurrent sessions.
type Server struct {
	name     string
	version  string
	provider ToolProvider
}

// NewServer creates a protocol server backed by the given tool provider.
func NewServer(name, version string, provider ToolProvider) *Server {
	return &Server{name: name, version: version, provider: provider}
}

// Serve pumps messages between the two channel endpoints of a session until
// the context is cancelled or the inbound channel is closed. Responses are
// written to outbound in the order the requests were read, which preserves
// per-session delivery order.
func (s *Server) Serve(ctx context.Context, inbound <-chan JSONRPCMessage, outbound chan<- JSONRPCMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			resp := s.HandleMessage(ctx, msg)
			if resp == nil {
				continue
			}
			select {
			case outbound <- *resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleMessage processes a single client message and returns the response,
// or nil when no response is due (notifications). Messages that already carry
// an error (for example a parse-error envelope injected by the transport) are
// echoed back so the client's session sees a structured failure.
func (s *Server) HandleMessage(ctx context.Context, msg JSONRPCMessage) *JSONRPCMessage {
	if msg.Error != nil {
		return &msg
	}
	if msg.IsNotification() {
		// notifications/initialized and friends need no reply
		return nil
	}
	if msg.Method == "" {
		resp := NewErrorResponse(msg.ID, INVALID_REQUEST, "message is not a request")
		return &resp
	}

	var resp JSONRPCMessage
	switch msg.Method {
	case "initialize":
		resp = NewResponse(msg.ID, InitializeResult{
			ProtocolVersion: LatestProtocolVersion,
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
			ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
		})
	case "ping":
		resp = NewResponse(msg.ID, struct{}{})
	case "tools/list":
		tools := s.provider.ListTools(ctx)
		if tools == nil {
			tools = []Tool{}
		}
		resp = NewResponse(msg.ID, ListToolsResult{Tools: tools})
	case "tools/call":
		resp = s.handleCallTool(ctx, msg)
	default:
		resp = NewErrorResponse(msg.ID, METHOD_NOT_FOUND, fmt.Sprintf("method not found: %s", msg.Method))
	}
	return &resp
}

func (s *Server) handleCallTool(ctx context.Context, msg JSONRPCMessage) JSONRPCMessage {
	var params CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return NewErrorResponse(msg.ID, INVALID_PARAMS, fmt.Sprintf("invalid tools/call params: %v", err))
	}
	if params.Name == "" {
		return NewErrorResponse(msg.ID, INVALID_PARAMS, "tool name is required")
	}

	content, err := s.provider.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.Printf("Tool call %s failed: %v", params.Name, err)
		return NewResponse(msg.ID, CallToolResult{
			Content: []Content{NewTextContent(err.Error())},
			IsError: true,
		})
	}
	if content == nil {
		content = []Content{}
	}
	return NewResponse(msg.ID, CallToolResult{Content: content})
}
