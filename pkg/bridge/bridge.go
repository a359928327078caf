// Package bridge ties the conversion pipeline together: it turns one OpenAPI
// document into a filtered MCP tool set, backs the tools with an HTTP
// dispatcher, and mounts the SSE transport on a ServeMux.
//
//	doc, _ := loader.NewSpecLoader(nil).LoadFromFiles(ctx, []string{"petstore.yaml"})
//	b, _ := bridge.New(doc[0].Doc, bridge.Options{BaseURL: "http://localhost:8000"})
//	mux := http.NewServeMux()
//	b.Mount(mux)
//	http.ListenAndServe(":8080", mux)
package bridge

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/apibridge/mcp-bridge/pkg/convert"
	"github.com/apibridge/mcp-bridge/pkg/dispatch"
	"github.com/apibridge/mcp-bridge/pkg/mcp"
	"github.com/apibridge/mcp-bridge/pkg/transport"
)

// DefaultMountPath is where the bridge is served when no mount path is
// configured.
const DefaultMountPath = "/mcp"

// Options configures a Bridge. BaseURL is required; everything else has a
// sensible default.
type Options struct {
	// Name and Version identify the MCP server to clients. They default to
	// the document's info.title and info.version.
	Name    string
	Version string

	// BaseURL is the upstream root that path templates are joined to.
	BaseURL string

	// MountPath is the HTTP prefix the transport is served under.
	MountPath string

	// Convert controls tool description generation.
	Convert convert.Options

	// Filter narrows the exposed tool set. Conflicting include/exclude
	// pairs fail construction.
	Filter convert.FilterOptions

	// HTTPClient overrides the client used for upstream calls.
	HTTPClient *http.Client

	// ValidateArguments enables pre-dispatch JSON Schema validation of tool
	// arguments.
	ValidateArguments bool

	// ContextFunc customises the request context, e.g. for auth headers.
	ContextFunc transport.HTTPContextFunc
}

// Bridge exposes one API's operations as MCP tools over an SSE transport.
type Bridge struct {
	name       string
	mountPath  string
	tools      []mcp.Tool
	ops        convert.OperationMap
	dispatcher *dispatch.Dispatcher
	sse        *transport.SSEServer
}

// New converts the document, applies the filter, and assembles the serving
// stack. Conflicting filter options are a configuration error reported here,
// before anything is mounted.
func New(doc *openapi3.T, opts Options) (*Bridge, error) {
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	name := opts.Name
	version := opts.Version
	if doc.Info != nil {
		if name == "" {
			name = doc.Info.Title
		}
		if version == "" {
			version = doc.Info.Version
		}
	}
	if name == "" {
		name = "mcp-bridge"
	}

	mountPath := normalizeMountPath(opts.MountPath)

	tools, ops, err := convert.Convert(doc, opts.Convert)
	if err != nil {
		return nil, fmt.Errorf("failed to convert OpenAPI document: %w", err)
	}
	tools, err = convert.FilterTools(tools, ops, opts.Filter)
	if err != nil {
		return nil, err
	}

	dispatchOpts := []dispatch.Option{}
	if opts.HTTPClient != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithHTTPClient(opts.HTTPClient))
	}
	if opts.ValidateArguments {
		dispatchOpts = append(dispatchOpts, dispatch.WithArgumentValidation(tools))
	}

	b := &Bridge{
		name:       name,
		mountPath:  mountPath,
		tools:      tools,
		ops:        ops,
		dispatcher: dispatch.New(opts.BaseURL, ops, dispatchOpts...),
	}

	protocol := mcp.NewServer(name, version, b)
	sseOpts := []transport.SSEOption{}
	if opts.ContextFunc != nil {
		sseOpts = append(sseOpts, transport.WithContextFunc(opts.ContextFunc))
	}
	b.sse = transport.NewSSEServer(protocol, mountPath+"/messages/", sseOpts...)

	log.Printf("Bridge %s: %d tools exposed at %s", name, len(tools), mountPath)
	return b, nil
}

// ListTools implements mcp.ToolProvider with the filtered tool set.
func (b *Bridge) ListTools(ctx context.Context) []mcp.Tool {
	return b.tools
}

// CallTool implements mcp.ToolProvider by replaying the call upstream.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) ([]mcp.Content, error) {
	return b.dispatcher.Execute(ctx, name, arguments)
}

// Mount registers the transport's two endpoints on the mux: the event stream
// at the mount path and the message sink under {mount}/messages/.
func (b *Bridge) Mount(mux *http.ServeMux) {
	mux.HandleFunc(b.mountPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b.sse.HandleSSE(w, r)
	})
	mux.HandleFunc(b.mountPath+"/messages/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b.sse.HandlePostMessage(w, r)
	})
	log.Printf("MCP server listening at %s", b.mountPath)
}

// MountPath returns the HTTP prefix the bridge serves under.
func (b *Bridge) MountPath() string {
	return b.mountPath
}

// Name returns the server name reported to clients.
func (b *Bridge) Name() string {
	return b.name
}

// Tools returns the filtered tool set.
func (b *Bridge) Tools() []mcp.Tool {
	return b.tools
}

// Execute runs a tool directly, bypassing the transport. Used by the
// interactive mode and tests.
func (b *Bridge) Execute(ctx context.Context, name string, arguments map[string]any) ([]mcp.Content, error) {
	return b.dispatcher.Execute(ctx, name, arguments)
}

func normalizeMountPath(path string) string {
	if path == "" {
		return DefaultMountPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}
