// Package loader obtains OpenAPI documents for the bridge: from local files,
// remote URLs, or the spec database. This is the schema-extraction boundary;
// everything downstream works on the parsed *openapi3.T.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/apibridge/mcp-bridge/pkg/models"
	"github.com/apibridge/mcp-bridge/pkg/repository"
)

// LoadedSpec is one parsed and validated OpenAPI document plus the metadata
// needed to mount it.
type LoadedSpec struct {
	Name      string
	MountPath string
	BaseURL   string
	Doc       *openapi3.T
	Record    *models.SpecRecord
	Content   []byte
	LoadedAt  time.Time
}

// SpecLoader loads and tracks OpenAPI specifications. The repository is
// optional; without it only file and URL loading are available.
type SpecLoader struct {
	repo        *repository.SpecRepository
	loadedSpecs map[string]*LoadedSpec
}

// NewSpecLoader creates a loader. repo may be nil for file-only mode.
func NewSpecLoader(repo *repository.SpecRepository) *SpecLoader {
	return &SpecLoader{
		repo:        repo,
		loadedSpecs: make(map[string]*LoadedSpec),
	}
}

// LoadFromDatabase loads every active stored spec. Records that fail to
// parse are skipped with a log line rather than aborting the rest.
func (sl *SpecLoader) LoadFromDatabase(ctx context.Context) ([]*LoadedSpec, error) {
	if sl.repo == nil {
		return nil, fmt.Errorf("spec repository not initialized")
	}

	records, err := sl.repo.GetAllActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load specs from database: %w", err)
	}

	var loaded []*LoadedSpec
	for _, record := range records {
		spec, err := sl.processSpec(ctx, record.Name, record.MountPath, record.BaseURL, []byte(record.SpecContent), record)
		if err != nil {
			log.Printf("Failed to process spec %s: %v", record.Name, err)
			continue
		}
		loaded = append(loaded, spec)
		sl.loadedSpecs[spec.MountPath] = spec
	}
	return loaded, nil
}

// LoadFromFiles loads specifications from local paths or URLs. The mount
// path is derived from each file name.
func (sl *SpecLoader) LoadFromFiles(ctx context.Context, locations []string) ([]*LoadedSpec, error) {
	var loaded []*LoadedSpec
	for _, location := range locations {
		spec, err := sl.loadFromLocation(ctx, location)
		if err != nil {
			log.Printf("Failed to load spec from %s: %v", location, err)
			continue
		}
		loaded = append(loaded, spec)
		sl.loadedSpecs[spec.MountPath] = spec
	}
	return loaded, nil
}

func (sl *SpecLoader) loadFromLocation(ctx context.Context, location string) (*LoadedSpec, error) {
	var content []byte
	var err error

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		content, err = sl.loadFromURL(ctx, location)
	} else {
		content, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, err
	}

	name := endpointNameFromPath(location)
	return sl.processSpec(ctx, name, "/"+name, "", content, nil)
}

func (sl *SpecLoader) loadFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spec from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d when fetching spec from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// processSpec parses and validates raw spec content.
func (sl *SpecLoader) processSpec(ctx context.Context, name, mountPath, baseURL string, content []byte, record *models.SpecRecord) (*LoadedSpec, error) {
	ldr := openapi3.NewLoader()
	doc, err := ldr.LoadFromData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI spec validation failed: %w", err)
	}

	if baseURL == "" {
		baseURL = firstServerURL(doc)
	}

	return &LoadedSpec{
		Name:      name,
		MountPath: mountPath,
		BaseURL:   baseURL,
		Doc:       doc,
		Record:    record,
		Content:   content,
		LoadedAt:  time.Now(),
	}, nil
}

// firstServerURL picks the document's first declared server as the default
// upstream base URL.
func firstServerURL(doc *openapi3.T) string {
	if doc != nil && len(doc.Servers) > 0 && doc.Servers[0] != nil {
		return strings.TrimRight(doc.Servers[0].URL, "/")
	}
	return ""
}

// DetectFormat reports "json" or "yaml" for raw spec content. JSON is valid
// YAML, so JSON is probed first.
func DetectFormat(content []byte) string {
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		return "json"
	}
	var probe map[string]any
	if err := yaml.Unmarshal(content, &probe); err == nil {
		return "yaml"
	}
	return "unknown"
}

// GetLoadedSpecs returns all currently loaded specifications keyed by mount
// path.
func (sl *SpecLoader) GetLoadedSpecs() map[string]*LoadedSpec {
	return sl.loadedSpecs
}

// Reload re-reads all specs from the database and returns the names of the
// reloaded APIs.
func (sl *SpecLoader) Reload(ctx context.Context) ([]string, error) {
	if sl.repo == nil {
		return nil, nil
	}
	loaded, err := sl.LoadFromDatabase(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(loaded))
	for _, spec := range loaded {
		names = append(names, spec.Name)
	}
	return names, nil
}

// endpointNameFromPath derives a mount name from a file path or URL.
func endpointNameFromPath(path string) string {
	if strings.HasPrefix(path, "http") {
		parts := strings.Split(path, "/")
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.Index(filename, "?"); idx != -1 {
				filename = filename[:idx]
			}
			if idx := strings.LastIndex(filename, "."); idx != -1 {
				filename = filename[:idx]
			}
			return strings.ToLower(filename)
		}
	}

	baseName := filepath.Base(path)
	if idx := strings.LastIndex(baseName, "."); idx != -1 {
		baseName = baseName[:idx]
	}
	return strings.ToLower(baseName)
}
