package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is where progress is kept when no directory is given.
var DefaultDir = filepath.Join("res", "progress")

// FileStore keeps <key>.json (parameters) and <key>.txt (epsilon) in Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{Dir: dir}
}

// Close is a no-op; FileStore holds no handles between calls.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) paths(key string) (params, epsilon string) {
	base := filepath.Join(s.Dir, key)
	return base + ".json", base + ".txt"
}

func (s *FileStore) Load(_ context.Context, key string) (Record, error) {
	paramsPath, epsilonPath := s.paths(key)

	params, err := os.ReadFile(paramsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: read %s: %w", paramsPath, err)
	}

	text, err := os.ReadFile(epsilonPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: read %s: %w", epsilonPath, err)
	}
	epsilon, err := parseEpsilon(strings.TrimSpace(string(text)))
	if err != nil {
		return Record{}, err
	}

	return Record{Params: params, Epsilon: epsilon}, nil
}

func (s *FileStore) Save(_ context.Context, key string, rec Record) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("store: create %s: %w", s.Dir, err)
	}
	paramsPath, epsilonPath := s.paths(key)
	// The two renames are not atomic together. Epsilon goes first, so a crash
	// in between pairs old parameters with the newer (lower) epsilon.
	if err := writeFile(epsilonPath, []byte(formatEpsilon(rec.Epsilon))); err != nil {
		return err
	}
	return writeFile(paramsPath, rec.Params)
}

// writeFile replaces path through a temporary file so a crash never leaves half a record.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store: replace %s: %w", path, err)
	}
	return nil
}
