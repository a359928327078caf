// Package database manages the PostgreSQL connection and schema used for
// stored API specifications.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/apibridge/mcp-bridge/pkg/server"
)

// Connect establishes a connection using the DATABASE_URL environment
// variable and verifies it with a ping.
func Connect() (*sql.DB, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if !strings.HasPrefix(databaseURL, "postgresql://") && !strings.HasPrefix(databaseURL, "postgres://") {
		return nil, fmt.Errorf("DATABASE_URL must be a PostgreSQL connection string")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	log.Printf("Database connected: %s", server.MaskSensitive(databaseURL))
	return db, nil
}

// Initialize connects and brings the schema up to date.
func Initialize() (*sql.DB, error) {
	db, err := Connect()
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}
	return db, nil
}
