// Package dispatch executes tool calls by replaying them as HTTP requests
// against the upstream API. Given a tool name and a flat argument map it
// resolves the operation, routes each argument to its path/query/header slot,
// sends whatever is left over as the JSON body, and maps the HTTP response
// back to MCP content.
//
// The dispatcher holds no shared mutable state; calls are independent and may
// run concurrently, bounded only by the HTTP client's connection pool. It
// never retries and imposes no timeout of its own.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"

	"github.com/apibridge/mcp-bridge/pkg/convert"
	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

// ErrorStatusThreshold is the lowest HTTP status treated as a failed call.
// Everything below it, including 201/202/204 and redirects the client
// followed, counts as success.
const ErrorStatusThreshold = 400

// Dispatcher replays tool calls against a single upstream base URL.
type Dispatcher struct {
	baseURL string
	client  *http.Client
	ops     convert.OperationMap

	// validateArgs enables pre-dispatch validation of arguments against the
	// tool's input schema. Off by default: schema enforcement is the
	// upstream API's job, and local validation would break the path
	// placeholder passthrough.
	validateArgs bool
	schemas      map[string]*gojsonschema.Schema
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithArgumentValidation compiles each tool's input schema and rejects
// non-conforming arguments before any HTTP request is made.
func WithArgumentValidation(tools []mcp.Tool) Option {
	return func(d *Dispatcher) {
		d.validateArgs = true
		d.schemas = make(map[string]*gojsonschema.Schema, len(tools))
		for _, tool := range tools {
			loader := gojsonschema.NewGoLoader(tool.InputSchema)
			schema, err := gojsonschema.NewSchema(loader)
			if err != nil {
				// an uncompilable schema falls back to no validation
				continue
			}
			d.schemas[tool.Name] = schema
		}
	}
}

// New creates a Dispatcher over the given operation map. The base URL is
// normalized to carry no trailing slash so path templates join cleanly.
func New(baseURL string, ops convert.OperationMap, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		ops:     ops,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs the named tool with the given arguments and returns the
// response as a one-element text content sequence. Every failure (unknown
// tool, unsupported verb, transport error, upstream status >= 400) comes
// back as an error the protocol layer reports as a failed tool call.
// The caller's argument map is never mutated.
func (d *Dispatcher) Execute(ctx context.Context, toolName string, arguments map[string]any) ([]mcp.Content, error) {
	op, ok := d.ops[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	if d.validateArgs {
		if err := d.checkArguments(toolName, arguments); err != nil {
			return nil, err
		}
	}

	// Defensive copy; the routing passes below consume entries from it.
	args := make(map[string]any, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}

	path := op.Path
	query := url.Values{}
	headers := make(map[string]string)
	for _, param := range op.Parameters {
		value, present := args[param.Name]
		if !present {
			// Absent path params stay as literal {name} placeholders and
			// surface as an upstream error, not a local one.
			continue
		}
		switch param.In {
		case convert.LocationPath:
			path = strings.ReplaceAll(path, "{"+param.Name+"}", cast.ToString(value))
		case convert.LocationQuery:
			query.Set(param.Name, cast.ToString(value))
		case convert.LocationHeader:
			headers[param.Name] = cast.ToString(value)
		default:
			continue
		}
		delete(args, param.Name)
	}

	req, err := d.buildRequest(ctx, op.Method, path, query, headers, args)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling %s: %w", toolName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response for %s: %w", toolName, err)
	}
	resultText := decodeResponseBody(raw)

	if resp.StatusCode >= ErrorStatusThreshold {
		return nil, fmt.Errorf("error calling %s. Status code: %d. Response: %s", toolName, resp.StatusCode, resultText)
	}

	return []mcp.Content{mcp.NewTextContent(resultText)}, nil
}

// buildRequest assembles the outbound HTTP request. GET and DELETE never
// carry a body; POST, PUT and PATCH send the leftover arguments as JSON when
// any remain.
func (d *Dispatcher) buildRequest(ctx context.Context, method, path string, query url.Values, headers map[string]string, body map[string]any) (*http.Request, error) {
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	var reader io.Reader
	hasBody := false
	if method != http.MethodGet && method != http.MethodDelete && len(body) > 0 {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		hasBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// checkArguments validates the argument map against the tool's compiled
// input schema, when one is available.
func (d *Dispatcher) checkArguments(toolName string, arguments map[string]any) error {
	schema, ok := d.schemas[toolName]
	if !ok {
		return nil
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(arguments))
	if err != nil {
		return fmt.Errorf("argument validation for %s failed: %w", toolName, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", toolName, strings.Join(msgs, "; "))
	}
	return nil
}

// decodeResponseBody turns the raw response into display text. JSON bodies
// are re-indented; anything else falls back to raw text, then to a generic
// byte rendering. Exactly one of the three always succeeds.
func decodeResponseBody(raw []byte) string {
	var decoded any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		if pretty, err := json.MarshalIndent(decoded, "", "  "); err == nil {
			return string(pretty)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return fmt.Sprintf("%v", raw)
}
