package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

// echoProvider answers every call with a fixed text payload.
type echoProvider struct{}

func (echoProvider) ListTools(ctx context.Context) []mcp.Tool {
	return []mcp.Tool{{Name: "get_item"}}
}

func (echoProvider) CallTool(ctx context.Context, name string, arguments map[string]any) ([]mcp.Content, error) {
	return []mcp.Content{mcp.NewTextContent("ok:" + name)}, nil
}

func newTestTransport(t *testing.T) (*SSEServer, *httptest.Server) {
	t.Helper()
	protocol := mcp.NewServer("test", "0.0.1", echoProvider{})
	sse := NewSSEServer(protocol, "/mcp/messages/")

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", sse.HandleSSE)
	mux.HandleFunc("/mcp/messages/", sse.HandlePostMessage)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return sse, srv
}

type sseEvent struct {
	name string
	data string
}

// eventStream is a minimal SSE client for one stream connection.
type eventStream struct {
	resp   *http.Response
	events chan sseEvent
}

func openStream(t *testing.T, baseURL string) *eventStream {
	t.Helper()
	resp, err := http.Get(baseURL + "/mcp")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	es := &eventStream{resp: resp, events: make(chan sseEvent, 16)}
	go func() {
		defer close(es.events)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				if current.name != "" {
					es.events <- current
				}
				current = sseEvent{}
			}
		}
	}()
	t.Cleanup(es.close)
	return es
}

func (es *eventStream) close() {
	es.resp.Body.Close()
}

func (es *eventStream) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-es.events:
		require.True(t, ok, "stream closed before event arrived")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event")
		return sseEvent{}
	}
}

// handshake consumes the connected and endpoint events and returns the
// session id and advertised message endpoint.
func (es *eventStream) handshake(t *testing.T) (string, string) {
	t.Helper()
	connected := es.next(t)
	require.Equal(t, "connected", connected.name)

	endpoint := es.next(t)
	require.Equal(t, "endpoint", endpoint.name)
	return connected.data, endpoint.data
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestStreamHandshake(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)

	sessionID, endpoint := es.handshake(t)
	assert.Len(t, sessionID, 32)
	assert.NotContains(t, sessionID, "-")
	assert.Equal(t, fmt.Sprintf("/mcp/messages/?session_id=%s", sessionID), endpoint)
}

func TestInitializeRoundTrip(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	resp, body := postJSON(t, srv.URL+endpoint,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Accepted", body["message"])

	ev := es.next(t)
	require.Equal(t, "message", ev.name)

	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.data), &msg))
	assert.Equal(t, float64(1), msg["id"])
	result := msg["result"].(map[string]any)
	assert.Equal(t, mcp.LatestProtocolVersion, result["protocolVersion"])
}

func TestToolsListOverStream(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	resp, _ := postJSON(t, srv.URL+endpoint,
		`{"jsonrpc": "2.0", "id": 5, "method": "tools/list"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := es.next(t)
	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.data), &msg))
	tools := msg["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "get_item", tools[0].(map[string]any)["name"])
}

func TestSessionsAreIsolated(t *testing.T) {
	_, srv := newTestTransport(t)

	streamA := openStream(t, srv.URL)
	idA, endpointA := streamA.handshake(t)
	streamB := openStream(t, srv.URL)
	idB, endpointB := streamB.handshake(t)

	require.NotEqual(t, idA, idB)

	postJSON(t, srv.URL+endpointA, `{"jsonrpc": "2.0", "id": 100, "method": "ping"}`)
	postJSON(t, srv.URL+endpointB, `{"jsonrpc": "2.0", "id": 200, "method": "ping"}`)

	var msgA, msgB map[string]any
	require.NoError(t, json.Unmarshal([]byte(streamA.next(t).data), &msgA))
	require.NoError(t, json.Unmarshal([]byte(streamB.next(t).data), &msgB))
	assert.Equal(t, float64(100), msgA["id"])
	assert.Equal(t, float64(200), msgB["id"])
}

func TestPostMissingSessionID(t *testing.T) {
	_, srv := newTestTransport(t)

	resp, body := postJSON(t, srv.URL+"/mcp/messages/",
		`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "session_id is required", body["error"])
}

func TestPostInvalidSessionID(t *testing.T) {
	_, srv := newTestTransport(t)

	resp, body := postJSON(t, srv.URL+"/mcp/messages/?session_id=not-a-uuid",
		`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid session ID", body["error"])
}

func TestPostUnknownSession(t *testing.T) {
	_, srv := newTestTransport(t)

	resp, body := postJSON(t,
		srv.URL+"/mcp/messages/?session_id=00000000000000000000000000000000",
		`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Could not find session", body["error"])
}

func TestPostMalformedBodyStillAnswersOnStream(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	resp, body := postJSON(t, srv.URL+endpoint, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Could not parse message", body["error"])

	// the parse error is still delivered over the stream
	ev := es.next(t)
	require.Equal(t, "message", ev.name)
	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.data), &msg))
	errObj := msg["error"].(map[string]any)
	assert.Equal(t, float64(mcp.PARSE_ERROR), errObj["code"])
	assert.Equal(t, "unknown", msg["id"])
}

func TestPostNonEnvelopeJSON(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	// valid JSON but not a JSON-RPC envelope
	resp, body := postJSON(t, srv.URL+endpoint, `{"hello": "world"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Could not parse message", body["error"])
}

func TestDisconnectTearsDownSession(t *testing.T) {
	sse, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	require.Equal(t, 1, sse.SessionCount())
	es.close()

	require.Eventually(t, func() bool {
		return sse.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "session was not removed after disconnect")

	resp, body := postJSON(t, srv.URL+endpoint,
		`{"jsonrpc": "2.0", "id": 1, "method": "ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Could not find session", body["error"])
}

func TestNotificationProducesNoStreamEvent(t *testing.T) {
	_, srv := newTestTransport(t)
	es := openStream(t, srv.URL)
	_, endpoint := es.handshake(t)

	resp, _ := postJSON(t, srv.URL+endpoint,
		`{"jsonrpc": "2.0", "method": "notifications/initialized"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// a follow-up request must be the next and only stream event
	postJSON(t, srv.URL+endpoint, `{"jsonrpc": "2.0", "id": 9, "method": "ping"}`)
	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(es.next(t).data), &msg))
	assert.Equal(t, float64(9), msg["id"])
}
