// Package storage provides file-based JSON document storage. The hub
// keeps one document per context source plus the active context list,
// written atomically so a crash never leaves a half-written record.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no document exists at a path.
var ErrNotFound = errors.New("not found")

// Storage is a directory of JSON documents addressed by path segments.
// Concurrent writers to the same document are serialized with a file
// lock, so separate processes sharing a data directory stay safe.
type Storage struct {
	root  string
	mu    sync.RWMutex
	locks map[string]*FileLock
}

// New creates a Storage rooted at the given directory.
func New(root string) *Storage {
	return &Storage{
		root:  root,
		locks: make(map[string]*FileLock),
	}
}

// Root returns the base directory.
func (s *Storage) Root() string {
	return s.root
}

func (s *Storage) docPath(path ...string) string {
	parts := append([]string{s.root}, path...)
	return filepath.Join(parts...) + ".json"
}

func (s *Storage) dirPath(path ...string) string {
	parts := append([]string{s.root}, path...)
	return filepath.Join(parts...)
}

// Get reads the document at path into v.
func (s *Storage) Get(ctx context.Context, v any, path ...string) error {
	data, err := os.ReadFile(s.docPath(path...))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read document: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return nil
}

// Put writes v as the document at path. The write goes through a temp
// file and rename so readers never observe partial content.
func (s *Storage) Put(ctx context.Context, v any, path ...string) error {
	filePath := s.docPath(path...)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Delete removes the document at path. Deleting a missing document is
// not an error.
func (s *Storage) Delete(ctx context.Context, path ...string) error {
	filePath := s.docPath(path...)

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// List returns the keys of all documents and subdirectories at path.
func (s *Storage) List(ctx context.Context, path ...string) ([]string, error) {
	entries, err := os.ReadDir(s.dirPath(path...))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			keys = append(keys, name)
		} else if strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}

	return keys, nil
}

// Scan calls fn for every document at path. Unreadable files are
// skipped; an error from fn stops the scan.
func (s *Storage) Scan(ctx context.Context, fn func(key string, data json.RawMessage) error, path ...string) error {
	dirPath := s.dirPath(path...)

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dirPath, name))
		if err != nil {
			continue
		}

		key := strings.TrimSuffix(name, ".json")
		if err := fn(key, json.RawMessage(data)); err != nil {
			return err
		}
	}

	return nil
}

// Exists reports whether a document exists at path.
func (s *Storage) Exists(ctx context.Context, path ...string) bool {
	_, err := os.Stat(s.docPath(path...))
	return err == nil
}

func (s *Storage) getLock(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		s.locks[filePath] = lock
	}

	return lock
}
