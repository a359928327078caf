package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/apibridge/mcp-bridge/pkg/bridge"
	"github.com/apibridge/mcp-bridge/pkg/database"
	"github.com/apibridge/mcp-bridge/pkg/loader"
	"github.com/apibridge/mcp-bridge/pkg/repository"
	"github.com/apibridge/mcp-bridge/pkg/server"
)

func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		usage()
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.LogConfiguration()

	ctx := context.Background()

	var repo *repository.SpecRepository
	if cfg.DatabaseMode {
		db, err := database.Initialize()
		if err != nil {
			log.Fatalf("Database initialization failed: %v", err)
		}
		defer db.Close()
		repo = repository.NewSpecRepository(db)
	}

	specLoader := loader.NewSpecLoader(repo)
	var specs []*loader.LoadedSpec
	if cfg.DatabaseMode {
		specs, err = specLoader.LoadFromDatabase(ctx)
	} else {
		specs, err = specLoader.LoadFromFiles(ctx, cfg.SpecFiles)
	}
	if err != nil {
		log.Fatalf("Failed to load specs: %v", err)
	}
	if len(specs) == 0 {
		log.Fatal("No usable OpenAPI specs loaded")
	}

	mux := http.NewServeMux()
	bridges, err := mountBridges(mux, specs, cfg)
	if err != nil {
		log.Fatalf("Failed to mount bridges: %v", err)
	}

	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/apis", server.HandleAPIList(func() ([]map[string]any, error) {
		apis := make([]map[string]any, 0, len(bridges))
		for _, b := range bridges {
			apis = append(apis, map[string]any{
				"name":       b.Name(),
				"mount_path": b.MountPath(),
				"tools":      len(b.Tools()),
			})
		}
		return apis, nil
	}))
	if cfg.DatabaseMode {
		mux.HandleFunc("/reload", server.HandleReload(func() ([]string, error) {
			return specLoader.Reload(context.Background())
		}))
	}

	if cfg.Interactive {
		if err := runInteractive(ctx, bridges[0]); err != nil {
			log.Fatalf("Interactive session failed: %v", err)
		}
		return
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
	if err := startServerWithGracefulShutdown(srv); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// mountBridges builds one bridge per loaded spec. A single spec mounts at
// the default /mcp; multiple specs each mount under their own path prefix.
func mountBridges(mux *http.ServeMux, specs []*loader.LoadedSpec, cfg *server.Config) ([]*bridge.Bridge, error) {
	var bridges []*bridge.Bridge
	for _, spec := range specs {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = spec.BaseURL
		}
		if baseURL == "" {
			log.Printf("Skipping %s: no base URL in spec and no --base-url given", spec.Name)
			continue
		}

		mountPath := bridge.DefaultMountPath
		if len(specs) > 1 {
			mountPath = spec.MountPath + bridge.DefaultMountPath
		}

		b, err := bridge.New(spec.Doc, bridge.Options{
			BaseURL:   baseURL,
			MountPath: mountPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build bridge for %s: %w", spec.Name, err)
		}
		b.Mount(mux)
		bridges = append(bridges, b)
	}
	if len(bridges) == 0 {
		return nil, fmt.Errorf("no bridges could be mounted")
	}
	return bridges, nil
}

// runInteractive drops into a readline REPL for exercising tools without an
// MCP client attached.
func runInteractive(ctx context.Context, b *bridge.Bridge) error {
	rl, err := readline.New(fmt.Sprintf("%s> ", b.Name()))
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Commands: tools | call <tool> [json-args] | exit")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			return nil
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "tools":
			for _, tool := range b.Tools() {
				desc := tool.Description
				if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
					desc = desc[:idx]
				}
				fmt.Printf("  %-30s %s\n", tool.Name, desc)
			}
		case strings.HasPrefix(line, "call "):
			fields := strings.SplitN(strings.TrimPrefix(line, "call "), " ", 2)
			args := map[string]any{}
			if len(fields) == 2 && strings.TrimSpace(fields[1]) != "" {
				if err := json.Unmarshal([]byte(fields[1]), &args); err != nil {
					fmt.Printf("bad arguments: %v\n", err)
					continue
				}
			}
			content, err := b.Execute(ctx, fields[0], args)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			for _, item := range content {
				data, _ := json.MarshalIndent(item, "", "  ")
				fmt.Println(string(data))
			}
		default:
			fmt.Println("unknown command")
		}
	}
}

// startServerWithGracefulShutdown serves until SIGINT/SIGTERM, then drains
// connections with a timeout.
func startServerWithGracefulShutdown(srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mcp-bridge [flags] [spec-file-or-url ...]

Flags:
  --http addr       listen address (default :8080)
  --base-url url    upstream API root (default: first server in each spec)
  --interactive     REPL for listing and calling tools locally

Set DATABASE_URL to load specs from PostgreSQL instead of files.
`)
}
