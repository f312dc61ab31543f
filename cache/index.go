// Package cache persists the per-album mapping from cache key to artifact
// filename, one artifact_index.json per album artifact directory, plus the
// password-copy sidecar files for encrypted artifacts.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	indexFilename   = "artifact_index.json"
	passwordFileExt = ".pwd"
)

// Store is the on-disk cache index. Mutation of one album's index is
// serialized; lookups verify the referenced artifact file still exists, so
// an entry left behind by an external deletion reads as a miss.
type Store struct {
	root string

	mu     sync.Mutex
	albums map[string]*albumIndex
}

type albumIndex struct {
	mu      sync.Mutex
	dir     string
	entries map[string]string
	loaded  bool
}

func NewStore(root string) *Store {
	return &Store{root: root, albums: make(map[string]*albumIndex)}
}

func (s *Store) album(albumID string) *albumIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	ai, ok := s.albums[albumID]
	if !ok {
		ai = &albumIndex{
			dir:     filepath.Join(s.root, albumID),
			entries: make(map[string]string),
		}
		s.albums[albumID] = ai
	}
	return ai
}

// Lookup returns the registered filename for the key. An index entry whose
// artifact file is gone is reported as a miss, not an error: the caller
// falls through to full reprocessing.
func (s *Store) Lookup(albumID, key string) (string, bool) {
	ai := s.album(albumID)
	ai.mu.Lock()
	defer ai.mu.Unlock()
	ai.load()

	filename, ok := ai.entries[key]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(ai.dir, filename)); err != nil {
		return "", false
	}
	return filename, true
}

// Register records key -> filename and flushes the index synchronously.
// Registering an identical pair again is a no-op; a different filename for
// the same key overwrites (latest write wins).
func (s *Store) Register(albumID, key, filename string) error {
	ai := s.album(albumID)
	ai.mu.Lock()
	defer ai.mu.Unlock()
	ai.load()

	if current, ok := ai.entries[key]; ok && current == filename {
		return nil
	}
	ai.entries[key] = filename
	return ai.flush()
}

// StorePassword persists a copy of the password used for the key's artifact
// so later equivalent requests can return it without regenerating.
func (s *Store) StorePassword(albumID, key, password string) error {
	ai := s.album(albumID)
	ai.mu.Lock()
	defer ai.mu.Unlock()

	if err := os.MkdirAll(ai.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(ai.dir, key+passwordFileExt), []byte(password), 0o600)
}

// Password reads back a persisted password copy.
func (s *Store) Password(albumID, key string) (string, bool) {
	ai := s.album(albumID)
	raw, err := os.ReadFile(filepath.Join(ai.dir, key+passwordFileExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// load reads the index file on first access. A missing or corrupt file is
// an empty index; the next Register rewrites it.
func (ai *albumIndex) load() {
	if ai.loaded {
		return
	}
	ai.loaded = true

	raw, err := os.ReadFile(filepath.Join(ai.dir, indexFilename))
	if err != nil {
		return
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return
	}
	ai.entries = entries
}

func (ai *albumIndex) flush() error {
	if err := os.MkdirAll(ai.dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(ai.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(ai.dir, indexFilename), raw, 0o644); err != nil {
		return fmt.Errorf("flush artifact index: %w", err)
	}
	return nil
}
