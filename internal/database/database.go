// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package database is the progress store: a DuckDB-backed transactional
// row store holding chapter, step, message, and hint progress plus the
// append-only activity log.
//
// The engine never caches progress in memory; every resolver and
// controller call reads row contents fresh so concurrent writers
// (player, admin, sweep) converge instead of diverging.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/metrics"
)

// ErrNotFound indicates a requested row does not exist. Callers must
// treat it as distinct from store unavailability: "no active chapter"
// and "could not determine state" are different answers.
var ErrNotFound = errors.New("record not found")

// DB wraps the DuckDB connection and provides the progress store API.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database, tunes the connection, and initializes the
// schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// The data directory may not exist on first boot.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.createIndexes(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return db, nil
}

// Conn returns the underlying SQL connection for packages that need
// direct access (health checks, tests).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close checkpoints and closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	return db.conn.Close()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// exec runs a statement and records query metrics for it. All CRUD
// writes go through here.
func (db *DB) exec(ctx context.Context, operation, table, stmt string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.conn.ExecContext(ctx, stmt, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
	return result, err
}

// query runs a row-set query and records query metrics for it.
func (db *DB) query(ctx context.Context, operation, table, stmt string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
	return rows, err
}

// queryRow runs a single-row query. Errors surface at Scan time, so
// only the duration is recorded here.
func (db *DB) queryRow(ctx context.Context, operation, table, stmt string, args ...any) *sql.Row {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, stmt, args...)
	metrics.RecordDBQuery(operation, table, time.Since(start), nil)
	return row
}

// closeQuietly closes a resource and ignores the error. For cleanup in
// error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
