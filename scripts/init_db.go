package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	service_key TEXT NOT NULL,
	qualified BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	missing_criteria JSONB NOT NULL DEFAULT '[]',
	decision_trail JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_session ON evaluations (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_evaluations_service ON evaluations (service_key);

CREATE TABLE IF NOT EXISTS screenings (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL DEFAULT '',
	escalated BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_screenings_session ON screenings (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_screenings_tier ON screenings (tier, created_at DESC);
`

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Could not load .env file: %v\n", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Println("DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "health_eligibility"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// First connect to the default 'postgres' database to create ours
	postgresURL := strings.Replace(databaseURL, "/"+dbName, "/postgres", 1)
	fmt.Println("Connecting to PostgreSQL server...")

	adminConn, err := pgx.Connect(ctx, postgresURL)
	if err != nil {
		fmt.Printf("Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		fmt.Printf("Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("Creating '%s' database...\n", dbName)
		_, err = adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
		if err != nil {
			fmt.Printf("Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
		fmt.Printf("Database '%s' created!\n", dbName)
	} else {
		fmt.Printf("Database '%s' already exists\n", dbName)
	}
	adminConn.Close(ctx)

	fmt.Printf("Connecting to %s database...\n", dbName)
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	fmt.Println("Connected to database successfully!")
	fmt.Println()

	fmt.Println("Executing database schema...")
	if _, err := conn.Exec(ctx, schema); err != nil {
		fmt.Printf("Failed to execute schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema executed successfully!")
	fmt.Println()

	// Verify
	for _, table := range []string{"evaluations", "screenings"} {
		var count int
		if err := conn.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			fmt.Printf("Warning: Could not count rows in %s: %v\n", table, err)
		} else {
			fmt.Printf("   Table %s ready (%d rows)\n", table, count)
		}
	}

	fmt.Println()
	fmt.Println("Database initialization completed successfully!")
}
