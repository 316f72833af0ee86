// Package fsstore implements the storage adapter contract
// for binary blobs on a directory hierarchy: one directory
// per namespace, one data file plus one metadata sidecar per
// key. It is the strategy of choice for large media files,
// with the database blob codec as the drop-in fallback.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ndanilov/cutroom/internal/models"
)

const (
	dataSuffix = ".bin"
	metaSuffix = ".meta.json"
)

type Store struct {
	dir string
}

type blobMeta struct {
	Name    string    `json:"name"`
	MIME    string    `json:"mime"`
	ModTime time.Time `json:"modTime"`
}

func New(root, namespace string) (*Store, error) {
	const op = "storage.fsstore.New"

	dir := filepath.Join(root, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) Get(_ context.Context, key string) (models.Blob, bool, error) {
	const op = "storage.fsstore.Get"

	metaRaw, err := os.ReadFile(s.path(key) + metaSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Blob{}, false, nil
		}
		return models.Blob{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var meta blobMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return models.Blob{}, false, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(s.path(key) + dataSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Blob{}, false, nil
		}
		return models.Blob{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return models.Blob{
		Name:    meta.Name,
		MIME:    meta.MIME,
		ModTime: meta.ModTime,
		Data:    data,
	}, true, nil
}

func (s *Store) Set(_ context.Context, key string, blob models.Blob) error {
	const op = "storage.fsstore.Set"

	if err := os.WriteFile(s.path(key)+dataSuffix, blob.Data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	metaRaw, err := json.Marshal(blobMeta{
		Name:    blob.Name,
		MIME:    blob.MIME,
		ModTime: blob.ModTime,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.WriteFile(s.path(key)+metaSuffix, metaRaw, 0o644); err != nil {
		// keep the pair consistent
		os.Remove(s.path(key) + dataSuffix)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Remove deletes both files of a key. Missing keys are not
// an error.
func (s *Store) Remove(_ context.Context, key string) error {
	const op = "storage.fsstore.Remove"

	for _, suffix := range []string{dataSuffix, metaSuffix} {
		if err := os.Remove(s.path(key) + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	const op = "storage.fsstore.Keys"

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), dataSuffix) {
			continue
		}
		keys = append(keys, unescapeKey(strings.TrimSuffix(entry.Name(), dataSuffix)))
	}

	return keys, nil
}

func (s *Store) Clear(_ context.Context) error {
	const op = "storage.fsstore.Clear"

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, escapeKey(key))
}

// Keys are ids and well-known constants; escaping keeps a
// hostile key from walking out of the namespace directory.
func escapeKey(key string) string {
	return strings.NewReplacer("/", "%2F", "\\", "%5C", "..", "%2E%2E").Replace(key)
}

func unescapeKey(name string) string {
	return strings.NewReplacer("%2F", "/", "%5C", "\\", "%2E%2E", "..").Replace(name)
}
