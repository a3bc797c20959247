// Package bridge reads and writes workspace files on behalf of file
// sources. Every path is resolved against the workspace root and
// anything that escapes it is refused.
package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
)

// PathError reports a path the bridge refuses to touch.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// NotFoundError reports a file source whose backing file is missing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "File not found: " + e.Path
}

// Bridge provides contained file access under a workspace root.
type Bridge struct {
	fs   afero.Fs
	root string
	log  zerolog.Logger

	mu     sync.Mutex
	writes map[string]time.Time
}

// New creates a Bridge over the real filesystem.
func New(root string) *Bridge {
	return NewFS(afero.NewOsFs(), root)
}

// NewFS creates a Bridge over any afero filesystem. Tests use an
// in-memory one.
func NewFS(fs afero.Fs, root string) *Bridge {
	return &Bridge{
		fs:     fs,
		root:   filepath.Clean(root),
		log:    logging.Component("bridge"),
		writes: make(map[string]time.Time),
	}
}

// Root returns the workspace root.
func (b *Bridge) Root() string {
	return b.root
}

// resolve maps a workspace-relative path to an absolute one,
// rejecting anything that would land outside the root.
func (b *Bridge) resolve(rel string) (string, error) {
	if rel == "" {
		return "", &PathError{Path: rel, Reason: "Path is required"}
	}
	if filepath.IsAbs(rel) {
		return "", &PathError{Path: rel, Reason: "Path must be workspace-relative"}
	}

	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &PathError{Path: rel, Reason: "Path escapes the workspace"}
	}

	return filepath.Join(b.root, clean), nil
}

// ReadFile returns the text of a workspace file.
func (b *Bridge) ReadFile(rel string) (string, error) {
	path, err := b.resolve(rel)
	if err != nil {
		return "", err
	}

	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: rel}
		}
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}

	return string(data), nil
}

// WriteFile replaces the text of a workspace file, creating parent
// directories as needed.
func (b *Bridge) WriteFile(rel, content string) error {
	path, err := b.resolve(rel)
	if err != nil {
		return err
	}

	if err := b.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}

	if err := afero.WriteFile(b.fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}

	b.noteWrite(filepath.ToSlash(filepath.Clean(rel)))
	b.log.Debug().Str("path", rel).Int("bytes", len(content)).Msg("file written")
	return nil
}

// noteWrite remembers a write so the workspace watcher can tell the
// bridge's own writes apart from external ones. Stale entries are
// pruned in passing.
func (b *Bridge) noteWrite(rel string) {
	now := time.Now()
	b.mu.Lock()
	for p, t := range b.writes {
		if now.Sub(t) > time.Minute {
			delete(b.writes, p)
		}
	}
	b.writes[rel] = now
	b.mu.Unlock()
}

// RecentlyWritten reports whether the bridge itself wrote rel within
// the given window.
func (b *Bridge) RecentlyWritten(rel string, within time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.writes[filepath.ToSlash(filepath.Clean(rel))]
	return ok && time.Since(t) < within
}

// Clear truncates a workspace file to empty.
func (b *Bridge) Clear(rel string) error {
	return b.WriteFile(rel, "")
}

// Exists reports whether a workspace file exists.
func (b *Bridge) Exists(rel string) bool {
	path, err := b.resolve(rel)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(b.fs, path)
	return err == nil && ok
}
