package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MiaowFISH/jmcomic-crawler/album"
	"github.com/MiaowFISH/jmcomic-crawler/config"
	"github.com/MiaowFISH/jmcomic-crawler/pack"
	"github.com/lithammer/shortuuid/v4"
)

// Coordinator ensures at most one in-flight content fetch per album.
type Coordinator interface {
	Ensure(ctx context.Context, albumID, proxy string, progress album.ProgressFunc) (album.Role, *album.Workspace, error)
}

// Packager turns a complete workspace into an artifact file.
type Packager interface {
	Package(ctx context.Context, ws *album.Workspace, params pack.Params, cacheKey string) (string, error)
}

// Index is the persistent artifact cache index.
type Index interface {
	Lookup(albumID, key string) (string, bool)
	Register(albumID, key, filename string) error
	StorePassword(albumID, key, password string) error
	Password(albumID, key string) (string, bool)
}

type Manager struct {
	cfg      *config.Config
	coord    Coordinator
	packager Packager
	index    Index
	logger   *slog.Logger

	mu       sync.Mutex
	tasks    map[string]*Task
	order    []string // task IDs in submission order
	inflight map[string]*Task // cache key -> primary task

	taskQueue      chan *Task
	concurrencySem chan struct{}
}

func NewManager(cfg *config.Config, coord Coordinator, packager Packager, index Index, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		coord:          coord,
		packager:       packager,
		index:          index,
		logger:         logger,
		tasks:          make(map[string]*Task),
		inflight:       make(map[string]*Task),
		taskQueue:      make(chan *Task, 100), // Buffered queue
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("task manager started", "concurrency", m.cfg.MaxConcurrency)
	go m.workerLoop(ctx)
}

// workerLoop pulls tasks from the queue and processes them.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("worker loop shutting down")
			return
		case t := <-m.taskQueue:
			// Wait for a free processing slot.
			m.concurrencySem <- struct{}{}
			go func(t *Task) {
				defer func() { <-m.concurrencySem }() // Release slot
				m.processTask(ctx, t)
			}(t)
		}
	}
}

// Submit validates the request, consults the cache index and the in-flight
// registry, and either completes the task immediately from cache, attaches
// it to an equivalent in-flight task, or queues a fresh pipeline run.
func (m *Manager) Submit(req *Request) (Task, error) {
	if err := req.Normalize(); err != nil {
		return Task{}, err
	}
	key := CacheKey(req)

	// Warm cache: a verified index hit means no fetch or packaging work.
	if filename, ok := m.index.Lookup(req.AlbumID, key); ok {
		t := m.newTask(req, key)
		t.Status = StatusDone
		t.Stage = "done"
		t.Duplicate = true
		t.ArtifactFilename = filename
		t.DownloadURL = m.downloadURL(req.AlbumID, filename)
		if req.Encrypt {
			if pwd, ok := m.index.Password(req.AlbumID, key); ok {
				t.Password = pwd
			} else {
				t.Password = req.Password
			}
		}
		close(t.done)

		m.mu.Lock()
		m.storeLocked(t)
		m.mu.Unlock()
		m.logger.Info("task served from cache", "taskId", t.ID, "albumId", t.AlbumID)
		return *t, nil
	}

	m.mu.Lock()
	t := m.newTask(req, key)
	if primary, ok := m.inflight[key]; ok && !primary.Status.Terminal() {
		t.Duplicate = true
		t.primary = primary
	} else {
		m.inflight[key] = t
	}
	m.storeLocked(t)
	snapshot := *t
	m.mu.Unlock()

	m.taskQueue <- t
	m.logger.Info("task submitted",
		"taskId", t.ID,
		"albumId", t.AlbumID,
		"format", req.OutputFormat,
		"duplicate", snapshot.Duplicate,
	)
	return snapshot, nil
}

// Get returns a copy of the task's current state, or ErrNotFound.
func (m *Manager) Get(taskID string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return *t, nil
}

// List returns copies of all tasks, newest first.
func (m *Manager) List() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.tasks[m.order[i]])
	}
	return out
}

func (m *Manager) newTask(req *Request, key string) *Task {
	return &Task{
		ID:        fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix()),
		AlbumID:   req.AlbumID,
		Status:    StatusQueued,
		Stage:     "queued",
		CreatedAt: time.Now(),
		key:       key,
		request:   *req,
		done:      make(chan struct{}),
	}
}

func (m *Manager) storeLocked(t *Task) {
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
}

func (m *Manager) update(t *Task, fn func(*Task)) {
	m.mu.Lock()
	fn(t)
	m.mu.Unlock()
}

// processTask drives one task through its pipeline. Failures are local to
// the task: the album flight and the in-flight registry entry are always
// released so other submissions can retry.
func (m *Manager) processTask(parentCtx context.Context, t *Task) {
	defer func() {
		m.mu.Lock()
		if m.inflight[t.key] == t {
			delete(m.inflight, t.key)
		}
		m.mu.Unlock()
		close(t.done)
	}()

	if t.primary != nil {
		m.adoptPrimary(parentCtx, t)
		return
	}

	taskCtx, cancel := context.WithTimeout(parentCtx, m.cfg.FetchTimeout)
	defer cancel()

	if err := m.preflight(); err != nil {
		m.fail(t, fmt.Errorf("insufficient system resources: %w", err))
		return
	}

	proxy := m.cfg.DefaultProxy
	if t.request.Proxy != nil {
		proxy = *t.request.Proxy
	}

	m.update(t, func(t *Task) {
		t.Status = StatusDownloading
		t.Stage = "downloading"
	})
	progress := func(saved, total int) {
		m.update(t, func(t *Task) {
			if saved > t.Progress {
				t.Progress = saved
			}
			if total > 0 {
				t.TotalImages = total
			}
		})
	}
	role, ws, err := m.coord.Ensure(taskCtx, t.AlbumID, proxy, progress)
	if err != nil {
		m.fail(t, err)
		return
	}
	m.logger.Info("workspace ready", "taskId", t.ID, "albumId", t.AlbumID, "role", role.String())

	m.update(t, func(t *Task) {
		t.Status = StatusProcessing
		t.Stage = "processing"
	})
	meta := ws.Metadata()
	m.update(t, func(t *Task) {
		t.Meta = AlbumMeta{
			Title:     meta.Title,
			Author:    meta.Author,
			Tags:      meta.Tags,
			PageCount: meta.PageCount,
		}
		if meta.TotalImages > 0 {
			t.TotalImages = meta.TotalImages
			if t.Progress < meta.TotalImages {
				t.Progress = meta.TotalImages
			}
		}
	})

	// A concurrent identical run may have registered the artifact while we
	// waited on the album lock. Adopt it rather than writing a second one.
	if filename, ok := m.index.Lookup(t.AlbumID, t.key); ok {
		m.finish(t, filename)
		return
	}

	m.update(t, func(t *Task) {
		t.Status = StatusPackaging
		t.Stage = "packaging"
	})
	password := t.request.Password
	if t.request.Encrypt && password == "" {
		if pwd, ok := m.index.Password(t.AlbumID, t.key); ok {
			// Reuse the persisted copy: regenerating would break the
			// openability of artifacts already issued for this key.
			password = pwd
		} else {
			password, err = pack.GeneratePassword(m.cfg.PasswordLength, m.cfg.PasswordCharset)
			if err != nil {
				m.fail(t, fmt.Errorf("generate password: %w", err))
				return
			}
		}
	}

	params := pack.Params{
		Format:      t.request.OutputFormat,
		Quality:     t.request.Quality,
		Encrypt:     t.request.Encrypt,
		Password:    password,
		Compression: *t.request.Compression,
	}
	filename, err := m.packager.Package(taskCtx, ws, params, t.key)
	if err != nil {
		// No index mutation: a later resubmission retries packaging
		// without re-fetching the workspace.
		m.fail(t, err)
		return
	}
	if err := m.index.Register(t.AlbumID, t.key, filename); err != nil {
		m.fail(t, err)
		return
	}
	if t.request.Encrypt {
		if err := m.index.StorePassword(t.AlbumID, t.key, password); err != nil {
			m.logger.Warn("persist password copy", "taskId", t.ID, "error", err)
		}
		m.update(t, func(t *Task) { t.Password = password })
	}
	m.finish(t, filename)
}

// adoptPrimary resolves a task that attached to an equivalent in-flight
// task: wait for the primary's terminal state, then adopt its registered
// artifact.
func (m *Manager) adoptPrimary(ctx context.Context, t *Task) {
	m.update(t, func(t *Task) { t.Stage = "awaiting" })

	timer := time.NewTimer(m.cfg.FollowerWait)
	defer timer.Stop()
	select {
	case <-t.primary.done:
	case <-timer.C:
		m.fail(t, album.ErrFetchWaitTimeout)
		return
	case <-ctx.Done():
		m.fail(t, ctx.Err())
		return
	}

	if filename, ok := m.index.Lookup(t.AlbumID, t.key); ok {
		if t.request.Encrypt {
			if pwd, ok := m.index.Password(t.AlbumID, t.key); ok {
				m.update(t, func(t *Task) { t.Password = pwd })
			}
		}
		m.finish(t, filename)
		return
	}

	m.mu.Lock()
	primaryErr := t.primary.Error
	primaryID := t.primary.ID
	m.mu.Unlock()
	if primaryErr != "" {
		m.fail(t, fmt.Errorf("equivalent task %s failed: %s", primaryID, primaryErr))
		return
	}
	m.fail(t, errors.New("equivalent task finished without a registered artifact"))
}

func (m *Manager) finish(t *Task, filename string) {
	m.update(t, func(t *Task) {
		t.Status = StatusDone
		t.Stage = "done"
		t.Progress = maxInt(t.Progress, t.TotalImages)
		t.ArtifactFilename = filename
		t.DownloadURL = m.downloadURL(t.AlbumID, filename)
	})
	m.logger.Info("task done", "taskId", t.ID, "albumId", t.AlbumID, "artifact", filename)
}

func (m *Manager) fail(t *Task, err error) {
	m.update(t, func(t *Task) {
		t.Status = StatusFailed
		t.Error = err.Error()
	})
	m.logger.Error("task failed", "taskId", t.ID, "albumId", t.AlbumID, "error", err)
}

func (m *Manager) downloadURL(albumID, filename string) string {
	route := strings.TrimSuffix(m.cfg.StaticRoute, "/")
	return route + "/" + albumID + "/" + filename
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
