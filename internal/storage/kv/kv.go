// Package kv implements the storage adapter contract on a
// single namespaced sqlite table. It is the strategy for
// small structured records (projects, media metadata,
// timeline snapshots, persisted thumbnails) and the fallback
// strategy for binary blobs.
package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the migration version this binary
// understands; a version bump requires a migration path.
const SchemaVersion uint = 1

var ErrSchemaVersion = errors.New("schema version mismatch")

type DB struct {
	db *sql.DB
}

// New opens (or creates) the database and brings the schema
// to the current version. A schema newer than this binary
// understands fails loudly instead of silently reading
// incompatible records.
func New(storagePath string) (*DB, error) {
	const op = "storage.kv.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &DB{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty || version != SchemaVersion {
		return fmt.Errorf("have version %d, want %d: %w", version, SchemaVersion, ErrSchemaVersion)
	}

	return nil
}

func (d *DB) Stop() error {
	return d.db.Close()
}

// Codec converts values to and from their storable byte
// representation. Conversion always happens outside any open
// statement so a slow encode of a large value cannot stall
// the write.
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type Store[T any] struct {
	db        *sql.DB
	namespace string
	codec     Codec[T]
}

// NewStore returns an adapter over its own key namespace.
func NewStore[T any](db *DB, namespace string, codec Codec[T]) *Store[T] {
	return &Store[T]{
		db:        db.db,
		namespace: namespace,
		codec:     codec,
	}
}

func (s *Store[T]) Get(ctx context.Context, key string) (T, bool, error) {
	const op = "storage.kv.Get"

	var zero T

	stmt, err := s.db.Prepare("SELECT value FROM kv WHERE namespace = ? AND key = ?")
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var raw []byte
	if err := stmt.QueryRowContext(ctx, s.namespace, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("%s: %w", op, err)
	}

	// Reconstruction happens after the read returned.
	value, err := s.codec.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", op, err)
	}

	return value, true, nil
}

func (s *Store[T]) Set(ctx context.Context, key string, value T) error {
	const op = "storage.kv.Set"

	// Encode before the statement opens.
	raw, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stmt, err := s.db.Prepare(
		`INSERT INTO kv(namespace, key, value, updated_ms) VALUES(?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_ms = excluded.updated_ms`,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, s.namespace, key, raw, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Remove deletes a key. Missing keys are not an error.
func (s *Store[T]) Remove(ctx context.Context, key string) error {
	const op = "storage.kv.Remove"

	stmt, err := s.db.Prepare("DELETE FROM kv WHERE namespace = ? AND key = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, s.namespace, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store[T]) Keys(ctx context.Context) ([]string, error) {
	const op = "storage.kv.Keys"

	stmt, err := s.db.Prepare("SELECT key FROM kv WHERE namespace = ?")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	var key string
	for rows.Next() {
		if err := rows.Scan(&key); err != nil {
			return keys, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func (s *Store[T]) Clear(ctx context.Context) error {
	const op = "storage.kv.Clear"

	stmt, err := s.db.Prepare("DELETE FROM kv WHERE namespace = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, s.namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
