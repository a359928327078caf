// Package server carries the operational pieces of the bridge process:
// configuration, structured errors, and the plain HTTP endpoints (health,
// reload, API listing) served next to the MCP mounts.
package server

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Config holds process configuration assembled from environment variables
// and command line arguments.
type Config struct {
	DatabaseMode bool
	DatabaseURL  string
	HTTPAddr     string
	BaseURL      string
	Interactive  bool
	SpecFiles    []string
}

// LoadConfig parses configuration. DATABASE_URL enables database mode;
// --http sets the listen address; --base-url overrides the upstream root;
// remaining arguments are spec files or URLs.
func LoadConfig(args []string) (*Config, error) {
	config := &Config{
		HTTPAddr: ":8080",
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.DatabaseMode = true
		config.DatabaseURL = dbURL
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--http":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--http requires an address argument")
			}
			i++
			config.HTTPAddr = args[i]
		case "--base-url":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--base-url requires a URL argument")
			}
			i++
			config.BaseURL = args[i]
		case "--interactive":
			config.Interactive = true
		default:
			if strings.HasPrefix(args[i], "--") {
				return nil, fmt.Errorf("unknown flag: %s", args[i])
			}
			config.SpecFiles = append(config.SpecFiles, args[i])
		}
	}

	return config, nil
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.DatabaseMode && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for database mode")
	}
	if !c.DatabaseMode && len(c.SpecFiles) == 0 {
		return fmt.Errorf("no OpenAPI spec files provided")
	}
	return nil
}

// LogConfiguration logs the effective configuration with sensitive parts
// masked.
func (c *Config) LogConfiguration() {
	if c.DatabaseMode {
		log.Println("Running in database mode")
		log.Printf("Database URL: %s", MaskSensitive(c.DatabaseURL))
	} else {
		log.Printf("Running in file mode with %d spec files", len(c.SpecFiles))
	}
	log.Printf("HTTP server will start on %s", c.HTTPAddr)
}

// MaskSensitive masks credentials and other sensitive parts of URLs for
// logging.
func MaskSensitive(url string) string {
	if len(url) > 20 {
		return url[:8] + "***" + url[len(url)-8:]
	}
	return "***"
}
