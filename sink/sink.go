// Copyright 2025 The fwcarve Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sink records brand and image identity, and per-stage completion,
// into an external PostgreSQL database. It is entirely optional: callers
// that don't configure a sink get hash-based tags and no persistence.
package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fwcarve/fwcarve/log"
)

// Config holds the connection parameters for the metadata database. The
// database name, user and password are fixed, matching the single-tenant
// deployment this sink was built for.
type Config struct {
	Host string
	Port int
}

const (
	dbName = "firmware"
	dbUser = "femu"
	dbPass = "femu"
)

// Sink is a connection to the metadata database.
type Sink struct {
	db *sql.DB
}

// Open connects to the metadata database described by cfg. Open never
// returns a usable error to callers that then fail the whole run: per the
// design, a sink that cannot connect simply isn't used, and extraction
// proceeds without one.
func Open(cfg Config) (*Sink, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", dbUser, dbPass, cfg.Host, cfg.Port, dbName)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sink.Open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink.Open: ping: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	return s.db.Close()
}

// UpsertImage resolves brand (defaulting to "unknown") and the image
// identified by (filename, brand, hash) to a stable numeric id, creating both rows on first
// use, and returns that id as a string suitable for use as an extraction
// tag. Any failure is returned to the caller, who is expected to fall back
// to a hash-based tag rather than abort the extraction.
func (s *Sink) UpsertImage(ctx context.Context, brand, filename, hash string) (string, error) {
	if brand == "" {
		brand = "unknown"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sink.UpsertImage: begin: %w", err)
	}
	defer tx.Rollback()

	var brandID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM brand WHERE name=$1`, brand).Scan(&brandID)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx, `INSERT INTO brand (name) VALUES ($1) RETURNING id`, brand).Scan(&brandID)
	}
	if err != nil {
		return "", fmt.Errorf("sink.UpsertImage: brand: %w", err)
	}

	var imageID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM image WHERE filename=$1 AND brand_id=$2 AND hash=$3`,
		filename, brandID, hash).Scan(&imageID)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO image (filename, brand_id, hash) VALUES ($1, $2, $3) RETURNING id`,
			filename, brandID, hash).Scan(&imageID)
	}
	if err != nil {
		return "", fmt.Errorf("sink.UpsertImage: image: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sink.UpsertImage: commit: %w", err)
	}
	log.Debugf("sink: image id %d for brand %q hash %s", imageID, brand, hash)
	return fmt.Sprintf("%d", imageID), nil
}

// Field is a closed set of updatable image columns. Unlike a bare string
// column name, a Field can only ever be one of the values below, so
// SetImageFlag below never builds SQL by string concatenation.
type Field int

// Field values.
const (
	FieldKernelExtracted Field = iota
	FieldRootfsExtracted
	FieldKernelVersion
)

// SetImageFlag updates one column of the image row identified by imageID.
// The column is chosen via a switch over a closed enum rather than by
// formatting a caller-supplied string into the query, so no caller can ever
// cause an arbitrary column (or arbitrary SQL) to be targeted.
func (s *Sink) SetImageFlag(ctx context.Context, imageID string, field Field, value any) error {
	var query string
	switch field {
	case FieldKernelExtracted:
		query = `UPDATE image SET kernel_extracted=$1 WHERE id=$2`
	case FieldRootfsExtracted:
		query = `UPDATE image SET rootfs_extracted=$1 WHERE id=$2`
	case FieldKernelVersion:
		query = `UPDATE image SET kernel_version=$1 WHERE id=$2`
	default:
		return fmt.Errorf("sink.SetImageFlag: unknown field %d", field)
	}
	if _, err := s.db.ExecContext(ctx, query, value, imageID); err != nil {
		return fmt.Errorf("sink.SetImageFlag: %w", err)
	}
	return nil
}
