// Command import-specs loads OpenAPI spec files into the PostgreSQL store
// used by the bridge's database mode.
//
// Usage:
//
//	DATABASE_URL=postgresql://... import-specs specs/*.yaml
//	DATABASE_URL=postgresql://... import-specs --manifest specs.yaml
//	DATABASE_URL=postgresql://... import-specs --reset specs/*.yaml
//
// A manifest is a YAML list of entries with file, name, mount_path, and
// base_url fields; without one, each spec file is imported under a name and
// mount path derived from its file name. --reset drops and recreates the
// spec table before importing.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/apibridge/mcp-bridge/pkg/database"
	"github.com/apibridge/mcp-bridge/pkg/loader"
	"github.com/apibridge/mcp-bridge/pkg/models"
	"github.com/apibridge/mcp-bridge/pkg/repository"
)

// ManifestEntry describes one spec to import.
type ManifestEntry struct {
	File      string `yaml:"file" json:"file"`
	Name      string `yaml:"name" json:"name"`
	MountPath string `yaml:"mount_path" json:"mount_path"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

func main() {
	args := os.Args[1:]
	reset := false
	if len(args) > 0 && args[0] == "--reset" {
		reset = true
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: import-specs [--reset] [--manifest file] [spec-file ...]")
		os.Exit(1)
	}

	var entries []ManifestEntry
	var err error
	if args[0] == "--manifest" {
		if len(args) < 2 {
			log.Fatal("--manifest requires a file argument")
		}
		entries, err = readManifest(args[1])
		if err != nil {
			log.Fatalf("Failed to read manifest: %v", err)
		}
	} else {
		for _, path := range args {
			entries = append(entries, entryFromPath(path))
		}
	}

	db, err := database.Initialize()
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer db.Close()

	if reset {
		if err := database.DropSpecsTable(db); err != nil {
			log.Fatalf("Failed to reset spec table: %v", err)
		}
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Failed to recreate spec table: %v", err)
		}
		log.Println("Spec table reset")
	}
	repo := repository.NewSpecRepository(db)

	ctx := context.Background()
	imported := 0
	for _, entry := range entries {
		if err := importSpec(ctx, repo, entry); err != nil {
			log.Printf("Skipping %s: %v", entry.File, err)
			continue
		}
		log.Printf("Imported %s as %s (mount %s)", entry.File, entry.Name, entry.MountPath)
		imported++
	}
	log.Printf("Imported %d of %d specs", imported, len(entries))
}

func readManifest(path string) ([]ManifestEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []ManifestEntry
	if err := yaml.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("manifest does not parse: %w", err)
	}
	for i, entry := range entries {
		if entry.File == "" {
			return nil, fmt.Errorf("manifest entry %d has no file", i)
		}
		if entry.Name == "" {
			entries[i] = entryFromPath(entry.File)
			entries[i].MountPath = entry.MountPath
			entries[i].BaseURL = entry.BaseURL
		}
		if entries[i].MountPath == "" {
			entries[i].MountPath = "/" + entries[i].Name
		}
	}
	return entries, nil
}

func entryFromPath(path string) ManifestEntry {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return ManifestEntry{
		File:      path,
		Name:      name,
		MountPath: "/" + name,
	}
}

// importSpec validates the document before storing it so the table never
// holds a spec the bridge cannot serve.
func importSpec(ctx context.Context, repo *repository.SpecRepository, entry ManifestEntry) error {
	ext := strings.ToLower(filepath.Ext(entry.File))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return fmt.Errorf("unsupported file extension %q", ext)
	}

	content, err := os.ReadFile(entry.File)
	if err != nil {
		return err
	}

	ldr := openapi3.NewLoader()
	doc, err := ldr.LoadFromData(content)
	if err != nil {
		return fmt.Errorf("spec does not parse: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("spec validation failed: %w", err)
	}

	record := models.NewSpecRecord(entry.Name, string(content), entry.MountPath, entry.BaseURL)
	format := loader.DetectFormat(content)
	record.FileFormat = &format
	if doc.Info != nil {
		if doc.Info.Title != "" {
			title := doc.Info.Title
			record.Title = &title
		}
		if doc.Info.Version != "" {
			version := doc.Info.Version
			record.Version = &version
		}
	}

	_, err = repo.Create(record)
	return err
}
