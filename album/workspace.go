package album

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const metaFilename = "meta.json"

// Metadata is the persisted shape of a workspace's meta.json.
type Metadata struct {
	AlbumID     string     `json:"album_id"`
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	PageCount   int        `json:"page_count,omitempty"`
	TotalImages int        `json:"total_images,omitempty"`
	Complete    bool       `json:"complete"`
	Images      []ImageRef `json:"images,omitempty"`
}

// ImageRef describes one fetched page image.
type ImageRef struct {
	Chapter string `json:"chapter"`
	Page    int    `json:"page"`
	URL     string `json:"url"`
	Path    string `json:"path"`
}

// Workspace is the on-disk staging area for one album: chapter
// subdirectories of raw images plus meta.json. It is mutated only by the
// fetch leader for the album; everyone else reads.
type Workspace struct {
	albumID string
	dir     string

	mu   sync.Mutex
	meta Metadata
}

func openWorkspace(dir, albumID string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace for album %s: %w", albumID, err)
	}
	ws := &Workspace{
		albumID: albumID,
		dir:     dir,
		meta:    Metadata{AlbumID: albumID},
	}
	raw, err := os.ReadFile(filepath.Join(dir, metaFilename))
	if err == nil {
		var meta Metadata
		// A corrupt meta.json is treated as an empty workspace; the next
		// successful fetch rewrites it.
		if err := json.Unmarshal(raw, &meta); err == nil {
			meta.AlbumID = albumID
			ws.meta = meta
		}
	}
	return ws, nil
}

func (w *Workspace) AlbumID() string { return w.albumID }

func (w *Workspace) Dir() string { return w.dir }

// SetAlbumInfo records album-level metadata as reported by the source.
func (w *Workspace) SetAlbumInfo(title, author string, tags []string, pageCount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.meta.Title = title
	w.meta.Author = author
	w.meta.Tags = tags
	if pageCount > 0 {
		w.meta.PageCount = pageCount
	}
}

// ChapterDir returns the directory for a chapter, creating it if needed.
func (w *Workspace) ChapterDir(name string) (string, error) {
	dir := filepath.Join(w.dir, sanitizeName(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chapter dir: %w", err)
	}
	return dir, nil
}

// RecordImage appends a fetched image to the in-memory metadata. The list is
// flushed to meta.json by MarkComplete.
func (w *Workspace) RecordImage(ref ImageRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.meta.Images = append(w.meta.Images, ref)
}

// MarkComplete reconciles the on-disk image count against the expected page
// count and persists meta.json with complete=true. The reconciliation is
// best-effort: total_images is observational, page_count gates completeness.
func (w *Workspace) MarkComplete() error {
	count, err := w.countImages()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("album %s: fetch finished with no images on disk", w.albumID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.meta.TotalImages = count
	if w.meta.PageCount == 0 {
		w.meta.PageCount = count
	}
	w.meta.Complete = true
	return w.saveLocked()
}

// Complete verifies the workspace against the filesystem: the meta flag must
// be set, at least one image must exist, and when the expected page count is
// known the on-disk count must reach it. Externally deleted images therefore
// demote a previously complete workspace.
func (w *Workspace) Complete() bool {
	w.mu.Lock()
	complete := w.meta.Complete
	pageCount := w.meta.PageCount
	w.mu.Unlock()

	if !complete {
		return false
	}
	count, err := w.countImages()
	if err != nil || count == 0 {
		return false
	}
	return pageCount == 0 || count >= pageCount
}

// Metadata returns a copy of the current metadata.
func (w *Workspace) Metadata() Metadata {
	w.mu.Lock()
	defer w.mu.Unlock()
	meta := w.meta
	meta.Tags = append([]string(nil), w.meta.Tags...)
	meta.Images = append([]ImageRef(nil), w.meta.Images...)
	return meta
}

// CollectImages walks the workspace and returns all image paths in chapter,
// then filename order.
func (w *Workspace) CollectImages() ([]string, error) {
	var images []string
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isImageFile(path) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect images for album %s: %w", w.albumID, err)
	}
	sort.Strings(images)
	return images, nil
}

func (w *Workspace) countImages() (int, error) {
	images, err := w.CollectImages()
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

func (w *Workspace) saveLocked() error {
	raw, err := json.MarshalIndent(w.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, metaFilename), raw, 0o644)
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// Store hands out workspaces under a common root, one shared instance per
// album so the coordinator's leader and followers observe the same state.
type Store struct {
	root string

	mu   sync.Mutex
	open map[string]*Workspace
}

func NewStore(root string) *Store {
	return &Store{root: root, open: make(map[string]*Workspace)}
}

func (s *Store) Open(albumID string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.open[albumID]; ok {
		return ws, nil
	}
	ws, err := openWorkspace(filepath.Join(s.root, sanitizeName(albumID)), albumID)
	if err != nil {
		return nil, err
	}
	s.open[albumID] = ws
	return ws, nil
}
