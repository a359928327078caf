// Package transport implements the HTTP session layer between MCP clients
// and the in-process protocol server.
//
// Each client opens one long-lived SSE stream (server -> client) and POSTs
// its own messages to a separate endpoint, correlated by a session id the
// stream hands out. The transport owns the per-session channel pair and the
// registry that maps session ids to live sessions; everything is torn down
// unconditionally when the stream ends.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

// defaultChannelBuffer is the per-session buffer of the inbound and outbound
// channels. A posted message is accepted immediately as long as the protocol
// server is not this far behind.
const defaultChannelBuffer = 16

// HTTPContextFunc customises the request context handed to the protocol
// server, e.g. to inject credentials from headers.
type HTTPContextFunc func(ctx context.Context, r *http.Request) context.Context

// SSEOption configures an SSEServer.
type SSEOption func(*SSEServer)

// WithContextFunc sets the context customisation hook.
func WithContextFunc(fn HTTPContextFunc) SSEOption {
	return func(s *SSEServer) {
		s.contextFunc = fn
	}
}

// WithChannelBuffer overrides the per-session channel buffer size.
func WithChannelBuffer(n int) SSEOption {
	return func(s *SSEServer) {
		if n > 0 {
			s.channelBuffer = n
		}
	}
}

// SSEServer ferries JSON-RPC messages between MCP clients and a protocol
// server. It serves two HTTP endpoints: the long-lived event stream
// (HandleSSE) and the per-session message sink (HandlePostMessage).
type SSEServer struct {
	server          *mcp.Server
	messageEndpoint string
	sessions        *sessionRegistry
	channelBuffer   int
	contextFunc     HTTPContextFunc
}

// NewSSEServer creates a transport for the given protocol server.
// messageEndpoint is the path clients must POST messages to; the session id
// is appended as a query parameter in the advertised endpoint event.
func NewSSEServer(server *mcp.Server, messageEndpoint string, opts ...SSEOption) *SSEServer {
	s := &SSEServer{
		server:          server,
		messageEndpoint: messageEndpoint,
		sessions:        newSessionRegistry(),
		channelBuffer:   defaultChannelBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionCount returns the number of live sessions.
func (s *SSEServer) SessionCount() int {
	return s.sessions.count()
}

// HandleSSE serves the long-lived event stream. It mints a session, emits the
// connected and endpoint events, then forwards every protocol-server message
// as a message event until the client disconnects. Cleanup runs on every exit
// path: the session leaves the registry and both channels are released, so a
// stale session id can never accept further posts.
func (s *SSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sess := newSession(s.channelBuffer)
	s.sessions.add(sess)

	ctx, cancel := context.WithCancel(r.Context())
	if s.contextFunc != nil {
		ctx = s.contextFunc(ctx, r)
	}

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		s.server.Serve(ctx, sess.inbound, sess.outbound)
	}()

	defer func() {
		s.sessions.remove(sess.id)
		cancel()
		sess.close()
		<-serveDone
		log.Printf("Session %s closed", sess.hexID())
	}()

	if err := writeSSEEvent(w, "connected", sess.hexID()); err != nil {
		return
	}
	flusher.Flush()

	endpoint := fmt.Sprintf("%s?session_id=%s", s.messageEndpoint, sess.hexID())
	if err := writeSSEEvent(w, "endpoint", endpoint); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case msg := <-sess.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal outbound message: %v", err)
				continue
			}
			if err := writeSSEEvent(w, "message", string(data)); err != nil {
				log.Printf("Failed to write SSE event: %v", err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandlePostMessage accepts one client message for an existing session. The
// HTTP reply only acknowledges the hand-off; the protocol-level response
// arrives asynchronously on the session's event stream. Malformed bodies are
// converted to a parse-error envelope and still delivered, so the client's
// own session sees a structured failure rather than silence.
func (s *SSEServer) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	sessionIDParam := r.URL.Query().Get("session_id")
	if sessionIDParam == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sessionID, err := uuid.Parse(sessionIDParam)
	if err != nil {
		log.Printf("Received invalid session ID: %s", sessionIDParam)
		writeJSONError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		log.Printf("Could not find session for ID: %s", sessionIDParam)
		writeJSONError(w, http.StatusNotFound, "Could not find session")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	if s.contextFunc != nil {
		ctx = s.contextFunc(ctx, r)
	}

	var msg mcp.JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil || !looksLikeJSONRPC(&msg) {
		detail := "message is not a JSON-RPC envelope"
		if err != nil {
			detail = err.Error()
		}
		// Forward a parse-error envelope so the protocol server can reply
		// with a proper error over the stream.
		if derr := sess.deliver(ctx, mcp.NewParseError(detail)); derr != nil {
			log.Printf("Failed to deliver parse error to session %s: %v", sess.hexID(), derr)
		}
		writeJSONError(w, http.StatusBadRequest, "Could not parse message")
		return
	}

	if err := sess.deliver(ctx, msg); err != nil {
		writeJSONError(w, http.StatusNotFound, "Could not find session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": "Accepted"}); err != nil {
		log.Printf("Failed to write accept response: %v", err)
	}
}

// looksLikeJSONRPC applies the structural checks a decoded envelope must
// pass: the protocol marker and at least one of method/result/error.
func looksLikeJSONRPC(msg *mcp.JSONRPCMessage) bool {
	if msg.JSONRPC != "2.0" {
		return false
	}
	return msg.Method != "" || msg.Result != nil || msg.Error != nil
}

func writeSSEEvent(w io.Writer, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}

// --- session ---

// session pairs the two channel endpoints of one connected client. The
// inbound channel feeds the protocol server's read side; the outbound channel
// feeds the event stream. Both are owned by the session for its lifetime.
type session struct {
	id       uuid.UUID
	inbound  chan mcp.JSONRPCMessage
	outbound chan mcp.JSONRPCMessage

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(buffer int) *session {
	return &session{
		id:       uuid.New(),
		inbound:  make(chan mcp.JSONRPCMessage, buffer),
		outbound: make(chan mcp.JSONRPCMessage, buffer),
		done:     make(chan struct{}),
	}
}

// hexID renders the session id in the compact 32-hex-digit form embedded in
// the endpoint URL.
func (s *session) hexID() string {
	return strings.ReplaceAll(s.id.String(), "-", "")
}

// deliver forwards a client message onto the inbound channel. It fails once
// the session is closed rather than blocking forever or panicking.
func (s *session) deliver(ctx context.Context, msg mcp.JSONRPCMessage) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close marks the session dead. The channels themselves are left to the
// garbage collector; closing them under concurrent posters would race.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// --- session registry ---

// sessionRegistry is the only cross-request shared mutable state in the
// transport: the table of live sessions. All access goes through the mutex;
// insert on connect, delete on disconnect, lookup on post.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[uuid.UUID]*session)}
}

func (r *sessionRegistry) add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *sessionRegistry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) get(id uuid.UUID) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
