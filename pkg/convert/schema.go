// schema.go
package convert

import (
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// extractProperty recursively converts an OpenAPI SchemaRef into a plain
// JSON-Schema property map. Handles allOf, oneOf, anyOf, enum, default,
// example, nested objects, and arrays.
func extractProperty(s *openapi3.SchemaRef, doc *openapi3.T) map[string]any {
	if s == nil || s.Value == nil {
		return nil
	}

	val := s.Value
	prop := map[string]any{}

	// allOf: merge all subschemas into one
	if len(val.AllOf) > 0 {
		for _, sub := range val.AllOf {
			for k, v := range extractProperty(sub, doc) {
				prop[k] = v
			}
		}
	}
	// oneOf: merge the variants into a single permissive object schema
	if len(val.OneOf) > 0 {
		return mergeOneOfSchemas(val.OneOf, doc)
	}
	if len(val.AnyOf) > 0 {
		fmt.Fprintf(os.Stderr, "[WARN] anyOf used in schema. Only basic support is provided.\n")
		anyOf := []any{}
		for _, sub := range val.AnyOf {
			anyOf = append(anyOf, extractProperty(sub, doc))
		}
		prop["anyOf"] = anyOf
	}

	if val.Type != nil && len(*val.Type) > 0 {
		prop["type"] = (*val.Type)[0]
	}
	if val.Format != "" {
		prop["format"] = val.Format
	}
	if val.Description != "" {
		prop["description"] = val.Description
	}
	if len(val.Enum) > 0 {
		prop["enum"] = val.Enum
	}
	if val.Default != nil {
		prop["default"] = val.Default
	}
	if val.Example != nil {
		prop["example"] = val.Example
	}

	if val.Type != nil && val.Type.Is("object") && val.Properties != nil {
		objProps := map[string]any{}
		for name, sub := range val.Properties {
			objProps[name] = extractProperty(sub, doc)
		}
		prop["properties"] = objProps
		if len(val.Required) > 0 {
			prop["required"] = val.Required
		}
	}
	if val.Type != nil && val.Type.Is("array") && val.Items != nil {
		prop["items"] = extractProperty(val.Items, doc)
	}
	return prop
}

// resolveSchemaRef follows a component reference to its concrete schema when
// the document is available, otherwise returns the inline value.
func resolveSchemaRef(schemaRef *openapi3.SchemaRef, doc *openapi3.T) *openapi3.Schema {
	if schemaRef == nil {
		return nil
	}
	if schemaRef.Ref != "" && doc != nil && doc.Components != nil && doc.Components.Schemas != nil {
		refPath := strings.TrimPrefix(schemaRef.Ref, "#/components/schemas/")
		if resolved, ok := doc.Components.Schemas[refPath]; ok && resolved.Value != nil {
			return resolved.Value
		}
	}
	return schemaRef.Value
}

// mergeOneOfSchemas flattens a oneOf into a single object schema carrying the
// union of all variant properties. A field is marked required only when every
// variant requires it.
func mergeOneOfSchemas(oneOf []*openapi3.SchemaRef, doc *openapi3.T) map[string]any {
	merged := map[string]any{"type": "object"}

	allProperties := make(map[string]any)
	requiredCount := make(map[string]int)
	totalSchemas := 0

	for _, schemaRef := range oneOf {
		schema := resolveSchemaRef(schemaRef, doc)
		if schema == nil {
			continue
		}
		totalSchemas++
		for propName, propSchemaRef := range schema.Properties {
			if propSchema := extractProperty(propSchemaRef, doc); propSchema != nil {
				allProperties[propName] = propSchema
			}
		}
		for _, req := range schema.Required {
			requiredCount[req]++
		}
	}

	if len(allProperties) > 0 {
		merged["properties"] = allProperties
	}
	var required []string
	for field, count := range requiredCount {
		if count == totalSchemas {
			required = append(required, field)
		}
	}
	if len(required) > 0 {
		merged["required"] = required
	}
	merged["description"] = fmt.Sprintf("Accepts any of %d possible schema variants (oneOf)", totalSchemas)
	return merged
}

// buildInputSchema assembles the tool input schema for one operation: every
// declared path/query/header parameter becomes a top-level property tagged
// with its location, and the JSON request body (when present) is expanded so
// its fields sit alongside them in the same flat namespace. Argument names
// must therefore be unique across all locations of one operation; collisions
// keep the declared parameter and drop the body field.
func buildInputSchema(params []Parameter, requestBody *openapi3.RequestBodyRef, doc *openapi3.T) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	properties := schema["properties"].(map[string]any)
	var required []string

	for _, p := range params {
		prop := p.Schema
		if prop == nil {
			prop = map[string]any{}
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		prop["x-parameter-location"] = string(p.In)
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	if requestBody != nil && requestBody.Value != nil {
		if mt := jsonContent(requestBody.Value.Content); mt != nil && mt.Schema != nil {
			bodySchema := resolveSchemaRef(mt.Schema, doc)
			if bodySchema == nil || len(bodySchema.Properties) == 0 {
				fmt.Fprintf(os.Stderr, "[WARN] Request body is not an object schema; body arguments cannot be flattened.\n")
			} else {
				for name, sub := range bodySchema.Properties {
					if _, taken := properties[name]; taken {
						fmt.Fprintf(os.Stderr, "[WARN] Body field '%s' collides with a declared parameter and is ignored.\n", name)
						continue
					}
					properties[name] = extractProperty(sub, doc)
				}
				for _, req := range bodySchema.Required {
					if _, known := properties[req]; known && !containsString(required, req) {
						required = append(required, req)
					}
				}
			}
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// jsonContent picks the JSON media type out of a content map, tolerating
// parameters after the base type (e.g. "application/json; charset=utf-8").
func jsonContent(content openapi3.Content) *openapi3.MediaType {
	for mtName, mt := range content {
		baseMT := mtName
		if idx := strings.IndexByte(mtName, ';'); idx > 0 {
			baseMT = strings.TrimSpace(mtName[:idx])
		}
		if baseMT == "application/json" || baseMT == "application/vnd.api+json" {
			return mt
		}
	}
	return nil
}
