// Package cache implements the keyed prompt-state registry: opaque
// per-key blobs moving through Absent -> Fresh -> Initialized ->
// Persisted, built on internal/storage.Storage's atomic writes and
// per-path file locks.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vico-ai/vico/internal/storage"
)

// State is a cache entry's position in its lifecycle.
type State int

const (
	Absent State = iota
	Fresh
	Initialized
	Persisted
)

// Entry is one cache registry record.
type Entry struct {
	Key   string
	State State
	Data  []byte
}

// memoryCacheMarker is the substring that identifies a memory-scoped
// cache key.
const memoryCacheMarker = "_memory_cache"

// Registry is the process-wide cache registry. A key is exclusively held
// by the generation that acquired it; Acquire rejects a second hold on
// the same key until it is released.
type Registry struct {
	store *storage.Storage

	mu      sync.Mutex
	entries map[string]*Entry
	held    map[string]bool
}

// New creates a Registry backed by store.
func New(store *storage.Storage) *Registry {
	return &Registry{
		store:   store,
		entries: make(map[string]*Entry),
		held:    make(map[string]bool),
	}
}

// Acquire exclusively claims key for the caller's generation, loading it
// from disk if present, else allocating a fresh Absent->Fresh entry. It
// returns an error if the key is already held.
func (r *Registry) Acquire(ctx context.Context, key string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.held[key] {
		return nil, fmt.Errorf("cache key %q is already held by another generation", key)
	}

	entry, ok := r.entries[key]
	if !ok {
		entry = &Entry{Key: key, State: Absent}
		var data []byte
		if err := r.store.Get(ctx, []string{"cache", key}, &data); err == nil {
			entry.Data = data
			entry.State = Persisted
		} else {
			entry.State = Fresh
		}
		r.entries[key] = entry
	}

	r.held[key] = true
	return entry, nil
}

// MarkInitialized promotes a Fresh/Persisted entry to Initialized.
func (r *Registry) MarkInitialized(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.State = Initialized
	}
}

// Save persists an entry's data to disk and promotes it to Persisted.
func (r *Registry) Save(ctx context.Context, key string, data []byte) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &Entry{Key: key}
		r.entries[key] = e
	}
	e.Data = data
	e.State = Persisted
	r.mu.Unlock()

	return r.store.Put(ctx, []string{"cache", key}, data)
}

// Release unconditionally removes key from the registry, optionally
// deleting its backing file, and releases the exclusive hold so a later
// generation can acquire it again.
func (r *Registry) Release(ctx context.Context, key string, deleteFile bool) error {
	r.mu.Lock()
	delete(r.entries, key)
	delete(r.held, key)
	r.mu.Unlock()

	if deleteFile {
		return r.store.Delete(ctx, []string{"cache", key})
	}
	return nil
}

// InvalidateMemoryCaches removes every key containing "_memory_cache"
// from both memory and disk, so the next Acquire of such a key returns a
// fresh, non-initialized entry.
func (r *Registry) InvalidateMemoryCaches(ctx context.Context) error {
	r.mu.Lock()
	var keys []string
	for k := range r.entries {
		if strings.Contains(k, memoryCacheMarker) {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()

	ids, err := r.store.List(ctx, []string{"cache"})
	if err == nil {
		for _, id := range ids {
			if strings.Contains(id, memoryCacheMarker) {
				found := false
				for _, k := range keys {
					if k == id {
						found = true
						break
					}
				}
				if !found {
					keys = append(keys, id)
				}
			}
		}
	}

	r.mu.Lock()
	for _, k := range keys {
		delete(r.entries, k)
		delete(r.held, k)
	}
	r.mu.Unlock()

	for _, k := range keys {
		if err := r.store.Delete(ctx, []string{"cache", k}); err != nil {
			return err
		}
	}
	return nil
}

// Key derives a deterministic cache key from a model identifier, a
// purpose label (e.g. "assistant", "subagent"), and an optional tool
// name.
func Key(modelID, purpose, toolName string) string {
	if toolName == "" {
		return fmt.Sprintf("%s_%s", modelID, purpose)
	}
	return fmt.Sprintf("%s_%s_%s", modelID, purpose, toolName)
}

// MemoryKey derives a cache key scoped to memory-store state, recognizable
// by InvalidateMemoryCaches via the _memory_cache substring.
func MemoryKey(modelID string) string {
	return fmt.Sprintf("%s_memory_cache", modelID)
}
