// Package convert walks an OpenAPI 3.x document and produces the MCP-visible
// projection of its operations: a list of tool descriptors for discovery and
// an operation map holding the metadata needed to replay each HTTP call.
//
// Every path/method pair with an operationId becomes one tool. Operations
// without an operationId are skipped, never renamed. The resulting operation
// map is consumed by the dispatch package; the tool list is what clients see
// through tools/list.
package convert

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yosida95/uritemplate/v3"

	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

// Location identifies where a declared parameter is sent on the wire. Body
// arguments carry no location; they are the implicit catch-all for anything
// the path/query/header pass does not consume.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
)

// supportedMethods lists the HTTP verbs that map to tools, in the order the
// converter visits them for one path.
var supportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Parameter is one declared parameter of an operation, resolved once at
// conversion time so dispatch is a single pass with no repeated filtering.
type Parameter struct {
	Name        string
	In          Location
	Description string
	Required    bool
	Schema      map[string]any
}

// Operation is the invocation metadata retained for one tool: everything the
// dispatcher needs to rebuild the HTTP request. Operations are immutable once
// built; the filter only ever deletes whole entries from the owning map.
type Operation struct {
	Name       string
	Path       string
	Method     string
	Parameters []Parameter
	Tags       []string
}

// OperationMap maps tool names (operation ids) to their invocation metadata.
type OperationMap map[string]*Operation

// Options controls how tool descriptions are generated.
type Options struct {
	// DescribeAllResponses includes every declared response status code in
	// the tool description text, not just the success case.
	DescribeAllResponses bool
	// DescribeFullResponseSchema inlines the complete JSON schema of each
	// described response instead of a one-line summary.
	DescribeFullResponseSchema bool
}

// Convert translates an OpenAPI document into MCP tools and the matching
// operation map. Tool order is deterministic: paths sorted lexically, methods
// in supportedMethods order.
func Convert(doc *openapi3.T, opts Options) ([]mcp.Tool, OperationMap, error) {
	if doc == nil || doc.Paths == nil {
		return nil, nil, fmt.Errorf("openapi document has no paths")
	}

	pathItems := doc.Paths.Map()
	paths := make([]string, 0, len(pathItems))
	for p := range pathItems {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var tools []mcp.Tool
	ops := make(OperationMap)

	for _, path := range paths {
		item := pathItems[path]
		if item == nil {
			continue
		}
		byMethod := item.Operations()
		for _, method := range supportedMethods {
			op := byMethod[method]
			if op == nil {
				continue
			}
			if op.OperationID == "" {
				log.Printf("Skipping %s %s: no operationId", method, path)
				continue
			}
			if _, dup := ops[op.OperationID]; dup {
				return nil, nil, fmt.Errorf("duplicate operationId %q at %s %s", op.OperationID, method, path)
			}

			params := resolveParameters(op.Parameters, doc)
			validatePathParams(path, params)

			tools = append(tools, mcp.Tool{
				Name:        op.OperationID,
				Description: buildDescription(op, doc, opts),
				InputSchema: buildInputSchema(params, op.RequestBody, doc),
			})
			ops[op.OperationID] = &Operation{
				Name:       op.OperationID,
				Path:       path,
				Method:     method,
				Parameters: params,
				Tags:       op.Tags,
			}
		}
	}

	return tools, ops, nil
}

// resolveParameters flattens the declared parameter refs into the fixed
// ordered list the dispatcher iterates. Cookie and other exotic locations are
// not proxied and are dropped with a warning.
func resolveParameters(params openapi3.Parameters, doc *openapi3.T) []Parameter {
	var out []Parameter
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		var loc Location
		switch p.In {
		case "path":
			loc = LocationPath
		case "query":
			loc = LocationQuery
		case "header":
			loc = LocationHeader
		default:
			log.Printf("Parameter %q uses unsupported location %q and is ignored", p.Name, p.In)
			continue
		}
		out = append(out, Parameter{
			Name:        p.Name,
			In:          loc,
			Description: p.Description,
			Required:    p.Required,
			Schema:      extractProperty(p.Schema, doc),
		})
	}
	return out
}

// validatePathParams checks that every declared path parameter has a matching
// {name} placeholder in the path template. A violation is logged, not fatal:
// the dispatcher's placeholder passthrough will surface it as an upstream
// error at call time.
func validatePathParams(path string, params []Parameter) {
	tmpl, err := uritemplate.New(path)
	if err != nil {
		log.Printf("Path template %q does not parse: %v", path, err)
		return
	}
	names := tmpl.Varnames()
	for _, p := range params {
		if p.In != LocationPath {
			continue
		}
		if !containsString(names, p.Name) {
			log.Printf("Path parameter %q has no {%s} placeholder in %q", p.Name, p.Name, path)
		}
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// buildDescription assembles the tool description from the operation summary
// and description, enriched with response information per Options.
func buildDescription(op *openapi3.Operation, doc *openapi3.T, opts Options) string {
	var b strings.Builder
	if op.Summary != "" {
		b.WriteString(op.Summary)
	}
	if op.Description != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(op.Description)
	}

	if op.Responses != nil {
		if section := describeResponses(op.Responses, doc, opts); section != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(section)
		}
	}
	return b.String()
}

// describeResponses renders the response section of a tool description. By
// default only the first success (2xx) response is shown; DescribeAllResponses
// enumerates every declared code.
func describeResponses(responses *openapi3.Responses, doc *openapi3.T, opts Options) string {
	codes := make([]string, 0, responses.Len())
	for code := range responses.Map() {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var lines []string
	for _, code := range codes {
		ref := responses.Value(code)
		if ref == nil || ref.Value == nil {
			continue
		}
		success := strings.HasPrefix(code, "2")
		if !opts.DescribeAllResponses && !success {
			continue
		}

		line := fmt.Sprintf("- %s", code)
		if ref.Value.Description != nil && *ref.Value.Description != "" {
			line += ": " + *ref.Value.Description
		}
		if mt := jsonContent(ref.Value.Content); mt != nil && mt.Schema != nil {
			if opts.DescribeFullResponseSchema {
				if full := renderFullSchema(mt.Schema, doc); full != "" {
					line += "\n  Schema:\n" + indent(full, "  ")
				}
			} else if summary := summarizeSchema(mt.Schema, doc); summary != "" {
				line += fmt.Sprintf(" (%s)", summary)
			}
		}
		lines = append(lines, line)

		if !opts.DescribeAllResponses {
			// only the first success code
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Responses:\n" + strings.Join(lines, "\n")
}

// summarizeSchema renders a one-line type summary of a response schema, e.g.
// "object {name, age}" or "array of object".
func summarizeSchema(ref *openapi3.SchemaRef, doc *openapi3.T) string {
	schema := resolveSchemaRef(ref, doc)
	if schema == nil || schema.Type == nil || len(*schema.Type) == 0 {
		return ""
	}
	typ := (*schema.Type)[0]
	switch {
	case typ == "object" && len(schema.Properties) > 0:
		fields := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		return fmt.Sprintf("object {%s}", strings.Join(fields, ", "))
	case typ == "array" && schema.Items != nil:
		inner := summarizeSchema(schema.Items, doc)
		if inner == "" {
			inner = "any"
		}
		return "array of " + inner
	default:
		return typ
	}
}

// renderFullSchema inlines the complete JSON schema of a response as
// indented JSON.
func renderFullSchema(ref *openapi3.SchemaRef, doc *openapi3.T) string {
	prop := extractProperty(ref, doc)
	if prop == nil {
		return ""
	}
	data, err := json.MarshalIndent(prop, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
