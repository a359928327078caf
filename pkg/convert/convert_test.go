package convert

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apibridge/mcp-bridge/pkg/mcp"
)

const itemsSpecJSON = `{
  "openapi": "3.0.0",
  "info": {"title": "Items API", "version": "1.0.0"},
  "paths": {
    "/items/{item_id}": {
      "get": {
        "operationId": "get_item",
        "summary": "Fetch one item",
        "tags": ["items"],
        "parameters": [
          {"name": "item_id", "in": "path", "required": true, "schema": {"type": "integer"}},
          {"name": "verbose", "in": "query", "schema": {"type": "boolean"}},
          {"name": "X-Trace-Id", "in": "header", "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {
            "description": "Item found",
            "content": {
              "application/json": {
                "schema": {
                  "type": "object",
                  "properties": {
                    "item_id": {"type": "integer"},
                    "name": {"type": "string"}
                  }
                }
              }
            }
          },
          "404": {"description": "Item missing"}
        }
      }
    },
    "/items": {
      "post": {
        "operationId": "create_item",
        "summary": "Create an item",
        "tags": ["items", "write"],
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["name"],
                "properties": {
                  "name": {"type": "string", "description": "Display name"},
                  "price": {"type": "number"}
                }
              }
            }
          }
        },
        "responses": {"201": {"description": "Created"}}
      },
      "get": {
        "summary": "Anonymous listing without an operationId",
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/internal/flush": {
      "post": {
        "operationId": "flush_cache",
        "tags": ["admin"],
        "responses": {"204": {"description": "Flushed"}}
      }
    }
  }
}`

func loadDoc(t *testing.T, raw string) *openapi3.T {
	t.Helper()
	ldr := openapi3.NewLoader()
	doc, err := ldr.LoadFromData([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

func TestConvertSkipsOperationsWithoutOperationID(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	tools, ops, err := Convert(doc, Options{})
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_item", "create_item", "flush_cache"}, names)
	assert.Len(t, ops, 3)
	assert.NotContains(t, ops, "")
}

func TestConvertOperationMetadata(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	_, ops, err := Convert(doc, Options{})
	require.NoError(t, err)

	op := ops["get_item"]
	require.NotNil(t, op)
	assert.Equal(t, "/items/{item_id}", op.Path)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, []string{"items"}, op.Tags)

	require.Len(t, op.Parameters, 3)
	assert.Equal(t, LocationPath, op.Parameters[0].In)
	assert.Equal(t, "item_id", op.Parameters[0].Name)
	assert.Equal(t, LocationQuery, op.Parameters[1].In)
	assert.Equal(t, LocationHeader, op.Parameters[2].In)
}

func TestConvertBuildsFlatInputSchema(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	tools, _, err := Convert(doc, Options{})
	require.NoError(t, err)

	for _, tool := range tools {
		if tool.Name != "create_item" {
			continue
		}
		props, ok := tool.InputSchema["properties"].(map[string]any)
		require.True(t, ok)
		// body fields sit at the top level, not nested under a body key
		assert.Contains(t, props, "name")
		assert.Contains(t, props, "price")
		assert.NotContains(t, props, "requestBody")
		assert.ElementsMatch(t, []string{"name"}, tool.InputSchema["required"])
	}

	for _, tool := range tools {
		if tool.Name != "get_item" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]any)
		require.Contains(t, props, "item_id")
		require.Contains(t, props, "verbose")
		require.Contains(t, props, "X-Trace-Id")

		itemID := props["item_id"].(map[string]any)
		assert.Equal(t, "path", itemID["x-parameter-location"])
		assert.Equal(t, "integer", itemID["type"])
		assert.ElementsMatch(t, []string{"item_id"}, tool.InputSchema["required"])
	}
}

func TestConvertDescriptionDefaultsToSuccessResponse(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	tools, _, err := Convert(doc, Options{})
	require.NoError(t, err)

	desc := toolByName(t, tools, "get_item").Description
	assert.Contains(t, desc, "Fetch one item")
	assert.Contains(t, desc, "200")
	assert.NotContains(t, desc, "404")
}

func TestConvertDescribeAllResponses(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	tools, _, err := Convert(doc, Options{DescribeAllResponses: true})
	require.NoError(t, err)

	desc := toolByName(t, tools, "get_item").Description
	assert.Contains(t, desc, "200")
	assert.Contains(t, desc, "404")
	assert.Contains(t, desc, "Item missing")
}

func TestConvertDescribeFullResponseSchema(t *testing.T) {
	doc := loadDoc(t, itemsSpecJSON)

	summary, _, err := Convert(doc, Options{})
	require.NoError(t, err)
	full, _, err := Convert(doc, Options{DescribeFullResponseSchema: true})
	require.NoError(t, err)

	summaryDesc := toolByName(t, summary, "get_item").Description
	fullDesc := toolByName(t, full, "get_item").Description
	assert.Contains(t, summaryDesc, "object {item_id, name}")
	assert.Contains(t, fullDesc, `"type": "object"`)
	assert.Contains(t, fullDesc, `"properties"`)
}

func TestConvertRejectsDuplicateOperationIDs(t *testing.T) {
	const dupSpec = `{
	  "openapi": "3.0.0",
	  "info": {"title": "Dup", "version": "1"},
	  "paths": {
	    "/a": {"get": {"operationId": "same", "responses": {"200": {"description": "OK"}}}},
	    "/b": {"get": {"operationId": "same", "responses": {"200": {"description": "OK"}}}}
	  }
	}`
	// parsed but deliberately not validated: document validation already
	// rejects duplicate ids, and the guard must hold for unvalidated input too
	doc, err := openapi3.NewLoader().LoadFromData([]byte(dupSpec))
	require.NoError(t, err)

	_, _, err = Convert(doc, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate operationId")
}

func toolByName(t *testing.T, tools []mcp.Tool, name string) mcp.Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not found", name)
	return mcp.Tool{}
}
