// Package store holds the context state: every registered source and
// the ordered active-context membership. It is the single collaborator
// behind all source operations; connection handlers never touch the
// persistence layer directly.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/storage"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// NotFoundError reports an operation against a source ID that does
// not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "Source not found: " + e.ID
}

// Options configures a Store.
type Options struct {
	// Storage persists sources and the active context. Nil keeps the
	// store purely in memory.
	Storage *storage.Storage
}

// Store is the in-memory context state with optional JSON persistence.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	sources map[string]*types.Source
	order   []string
	active  []string

	storage *storage.Storage
	log     zerolog.Logger
}

type activeDoc struct {
	SourceIDs []string `json:"sourceIds"`
}

// New creates a Store, loading any previously persisted state.
func New(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{
		sources: make(map[string]*types.Source),
		storage: opts.Storage,
		log:     logging.Component("store"),
	}

	if s.storage != nil {
		if err := s.load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load persisted state: %w", err)
		}
	}

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	err := s.storage.Scan(ctx, func(key string, data json.RawMessage) error {
		var src types.Source
		if err := json.Unmarshal(data, &src); err != nil {
			s.log.Warn().Str("sourceId", key).Err(err).Msg("skipping unreadable source record")
			return nil
		}
		if src.ID == "" {
			src.ID = key
		}
		s.sources[src.ID] = &src
		s.order = append(s.order, src.ID)
		return nil
	}, "source")
	if err != nil {
		return err
	}

	// Scan order follows directory listing; restore creation order.
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.sources[s.order[i]].Time.Created.Before(s.sources[s.order[j]].Time.Created)
	})

	var doc activeDoc
	switch err := s.storage.Get(ctx, &doc, "active"); err {
	case nil:
		for _, id := range doc.SourceIDs {
			if _, ok := s.sources[id]; ok {
				s.active = append(s.active, id)
			}
		}
	case storage.ErrNotFound:
	default:
		return err
	}

	s.log.Info().Int("sources", len(s.sources)).Int("active", len(s.active)).Msg("loaded persisted context")
	return nil
}

// List returns all sources in creation order.
func (s *Store) List() []types.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Source, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *copySource(s.sources[id]))
	}
	return out
}

// Get returns the source with the given ID.
func (s *Store) Get(id string) (*types.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return copySource(src), nil
}

// Add registers a new source, assigning its ID and timestamps. HTML
// snippets are normalized to markdown on the way in.
func (s *Store) Add(src types.Source) (*types.Source, error) {
	if !src.Type.Valid() {
		return nil, fmt.Errorf("invalid source type: %s", src.Type)
	}

	now := time.Now().UTC()
	src.ID = "src_" + ulid.Make().String()
	src.Time = types.SourceTime{Created: now, Updated: now}
	normalizeSnippet(&src, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(&src); err != nil {
		return nil, err
	}

	s.sources[src.ID] = &src
	s.order = append(s.order, src.ID)

	s.log.Debug().Str("sourceId", src.ID).Str("type", string(src.Type)).Str("name", src.Name).Msg("source added")
	return copySource(&src), nil
}

// Update applies a partial update and bumps the updated timestamp.
func (s *Store) Update(id string, patch types.SourcePatch) (*types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sources[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	updated := *copySource(current)
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Path != nil {
		updated.Path = *patch.Path
	}
	if patch.Content != nil {
		updated.Content = *patch.Content
	}
	if patch.ContentType != nil {
		updated.ContentType = *patch.ContentType
	}
	if patch.URL != nil {
		updated.URL = *patch.URL
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Children != nil {
		updated.Children = append([]string(nil), (*patch.Children)...)
	}
	updated.Time.Updated = time.Now().UTC()

	if err := s.persist(&updated); err != nil {
		return nil, err
	}

	s.sources[id] = &updated
	return copySource(&updated), nil
}

// Delete removes a source, scrubbing it from the active context and
// from any group that references it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return &NotFoundError{ID: id}
	}

	if s.storage != nil {
		if err := s.storage.Delete(context.Background(), "source", id); err != nil {
			return err
		}
	}

	delete(s.sources, id)
	s.order = removeID(s.order, id)

	if picked := removeID(s.active, id); len(picked) != len(s.active) {
		s.active = picked
		if err := s.persistActive(); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist active context after delete")
		}
	}

	for gid, src := range s.sources {
		if src.Type != types.SourceTypeGroup {
			continue
		}
		trimmed := removeID(src.Children, id)
		if len(trimmed) == len(src.Children) {
			continue
		}
		src.Children = trimmed
		src.Time.Updated = time.Now().UTC()
		if err := s.persist(src); err != nil {
			s.log.Warn().Str("sourceId", gid).Err(err).Msg("failed to persist group after member delete")
		}
	}

	s.log.Debug().Str("sourceId", id).Msg("source deleted")
	return nil
}

// ActiveSources returns the sources in the active context, in order.
func (s *Store) ActiveSources() []types.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Source, 0, len(s.active))
	for _, id := range s.active {
		if src, ok := s.sources[id]; ok {
			out = append(out, *copySource(src))
		}
	}
	return out
}

// ActiveIDs returns the active context membership, in order.
func (s *Store) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.active...)
}

// SetActive replaces the active context. Every ID must name an
// existing source; duplicates collapse to their first position. The
// new active sources are returned in order.
func (s *Store) SetActive(ids []string) ([]types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(ids))
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.sources[id]; !ok {
			return nil, &NotFoundError{ID: id}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, id)
	}

	s.active = next
	if err := s.persistActive(); err != nil {
		return nil, err
	}

	out := make([]types.Source, 0, len(next))
	for _, id := range next {
		out = append(out, *copySource(s.sources[id]))
	}
	s.log.Debug().Int("count", len(next)).Msg("active context replaced")
	return out, nil
}

// SetInlineContent replaces the inline content of a non-file source.
func (s *Store) SetInlineContent(id, content string) (*types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sources[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if current.Type == types.SourceTypeFile {
		return nil, fmt.Errorf("file source content lives on disk: %s", id)
	}

	updated := *copySource(current)
	updated.Content = content
	updated.Time.Updated = time.Now().UTC()

	if err := s.persist(&updated); err != nil {
		return nil, err
	}

	s.sources[id] = &updated
	return copySource(&updated), nil
}

// Touch bumps the updated timestamp without changing fields, used
// after out-of-band content writes.
func (s *Store) Touch(id string) (*types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sources[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	updated := *copySource(current)
	updated.Time.Updated = time.Now().UTC()

	if err := s.persist(&updated); err != nil {
		return nil, err
	}

	s.sources[id] = &updated
	return copySource(&updated), nil
}

// FindByName resolves a source by name: exact match first
// (case-insensitive), otherwise the closest name within a small edit
// distance so CLI typos still land.
func (s *Store) FindByName(name string) (*types.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(name)
	for _, id := range s.order {
		if strings.ToLower(s.sources[id].Name) == lower {
			return copySource(s.sources[id]), nil
		}
	}

	const maxDistance = 3
	bestDistance := maxDistance + 1
	var best *types.Source
	for _, id := range s.order {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(s.sources[id].Name))
		if d < bestDistance {
			bestDistance = d
			best = s.sources[id]
		}
	}
	if best == nil {
		return nil, &NotFoundError{ID: name}
	}
	return copySource(best), nil
}

func (s *Store) persist(src *types.Source) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Put(context.Background(), src, "source", src.ID)
}

func (s *Store) persistActive() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Put(context.Background(), activeDoc{SourceIDs: append([]string{}, s.active...)}, "active")
}

func copySource(src *types.Source) *types.Source {
	out := *src
	if src.Children != nil {
		out.Children = append([]string(nil), src.Children...)
	}
	return &out
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
