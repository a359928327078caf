package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSpecYAML = `openapi: "3.0.0"
info:
  title: Ping API
  version: "1.0.0"
servers:
  - url: http://api.internal:8000/
paths:
  /ping:
    get:
      operationId: ping
      responses:
        "200":
          description: pong
`

func writeSpecFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFiles(t *testing.T) {
	path := writeSpecFile(t, "ping-api.yaml", minimalSpecYAML)
	sl := NewSpecLoader(nil)

	specs, err := sl.LoadFromFiles(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, "ping-api", spec.Name)
	assert.Equal(t, "/ping-api", spec.MountPath)
	// trailing slash trimmed from the declared server
	assert.Equal(t, "http://api.internal:8000", spec.BaseURL)
	require.NotNil(t, spec.Doc)
	assert.Equal(t, "Ping API", spec.Doc.Info.Title)

	assert.Contains(t, sl.GetLoadedSpecs(), "/ping-api")
}

func TestLoadFromFilesSkipsBrokenSpecs(t *testing.T) {
	good := writeSpecFile(t, "good.yaml", minimalSpecYAML)
	bad := writeSpecFile(t, "bad.yaml", "this is not openapi: [")
	sl := NewSpecLoader(nil)

	specs, err := sl.LoadFromFiles(context.Background(), []string{bad, good})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "good", specs[0].Name)
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(minimalSpecYAML))
	}))
	defer srv.Close()

	sl := NewSpecLoader(nil)
	specs, err := sl.LoadFromFiles(context.Background(), []string{srv.URL + "/specs/ping.yaml"})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "ping", specs[0].Name)
}

func TestLoadFromURLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	sl := NewSpecLoader(nil)
	specs, err := sl.LoadFromFiles(context.Background(), []string{srv.URL + "/ping.yaml"})
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestLoadFromDatabaseWithoutRepository(t *testing.T) {
	sl := NewSpecLoader(nil)

	_, err := sl.LoadFromDatabase(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not initialized")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "json", DetectFormat([]byte(`{"openapi": "3.0.0"}`)))
	assert.Equal(t, "json", DetectFormat([]byte("  \n{\"a\": 1}")))
	assert.Equal(t, "yaml", DetectFormat([]byte("openapi: 3.0.0\ninfo:\n  title: x\n")))
	assert.Equal(t, "unknown", DetectFormat([]byte("key: [unclosed")))
}

func TestEndpointNameFromPath(t *testing.T) {
	assert.Equal(t, "petstore", endpointNameFromPath("/tmp/specs/Petstore.yaml"))
	assert.Equal(t, "orders", endpointNameFromPath("https://example.com/api/Orders.json?v=2"))
	assert.Equal(t, "plain", endpointNameFromPath("plain"))
}
