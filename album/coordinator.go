package album

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrFetchWaitTimeout is returned to a follower whose leader never finished
// within the configured wait bound.
var ErrFetchWaitTimeout = errors.New("timed out waiting for album download")

// Role describes how a caller's workspace became ready.
type Role int

const (
	// RoleCached means the workspace was already complete on disk; no
	// network attempt was made.
	RoleCached Role = iota
	// RoleLeader means this caller performed the fetch.
	RoleLeader
	// RoleFollower means another caller was already fetching and this one
	// waited for its outcome.
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleFollower:
		return "follower"
	default:
		return "cached"
	}
}

// ProgressFunc reports fetch progress: images saved so far and the expected
// total (0 when unknown).
type ProgressFunc func(saved, total int)

// Fetcher pulls an album's metadata and images into a workspace.
type Fetcher interface {
	FetchAlbum(ctx context.Context, ws *Workspace, proxy string, progress ProgressFunc) error
}

// flight is the completion signal for one in-progress fetch. err is written
// before done is closed and read only after.
type flight struct {
	done chan struct{}
	err  error
}

// Coordinator guarantees album-level mutual exclusion on content fetch.
// Exactly one caller per album becomes the leader and runs the fetch; the
// registry critical section covers only flight insertion and removal.
type Coordinator struct {
	store   *Store
	fetcher Fetcher
	wait    time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	flights map[string]*flight
}

func NewCoordinator(store *Store, fetcher Fetcher, wait time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		fetcher: fetcher,
		wait:    wait,
		logger:  logger,
		flights: make(map[string]*flight),
	}
}

// Ensure returns a workspace that is complete on success. A caller finding
// the workspace already complete proceeds immediately; otherwise it either
// leads the fetch or follows the current leader.
func (c *Coordinator) Ensure(ctx context.Context, albumID, proxy string, progress ProgressFunc) (Role, *Workspace, error) {
	ws, err := c.store.Open(albumID)
	if err != nil {
		return RoleCached, nil, err
	}
	if ws.Complete() {
		return RoleCached, ws, nil
	}

	c.mu.Lock()
	if f, ok := c.flights[albumID]; ok {
		c.mu.Unlock()
		return c.follow(ctx, albumID, f, ws)
	}
	f := &flight{done: make(chan struct{})}
	c.flights[albumID] = f
	c.mu.Unlock()

	return c.lead(ctx, albumID, proxy, progress, ws, f)
}

// lead runs the fetch as the flight's leader. The previous leader may have
// completed the album between the fast-path check and the flight insertion,
// so completeness is re-checked before any network work.
func (c *Coordinator) lead(ctx context.Context, albumID, proxy string, progress ProgressFunc, ws *Workspace, f *flight) (Role, *Workspace, error) {
	if ws.Complete() {
		c.release(albumID, f, nil)
		return RoleCached, ws, nil
	}

	c.logger.Info("fetching album", "albumId", albumID)
	err := c.fetcher.FetchAlbum(ctx, ws, proxy, progress)
	if err == nil {
		err = ws.MarkComplete()
	}
	c.release(albumID, f, err)

	if err != nil {
		return RoleLeader, ws, fmt.Errorf("fetch album %s: %w", albumID, err)
	}
	return RoleLeader, ws, nil
}

// release removes the flight and signals its waiters. err must be written
// before done is closed.
func (c *Coordinator) release(albumID string, f *flight, err error) {
	c.mu.Lock()
	delete(c.flights, albumID)
	c.mu.Unlock()
	f.err = err
	close(f.done)
}

func (c *Coordinator) follow(ctx context.Context, albumID string, f *flight, ws *Workspace) (Role, *Workspace, error) {
	timer := time.NewTimer(c.wait)
	defer timer.Stop()

	select {
	case <-f.done:
		if f.err != nil {
			return RoleFollower, ws, fmt.Errorf("album %s download failed: %w", albumID, f.err)
		}
		if !ws.Complete() {
			return RoleFollower, ws, fmt.Errorf("album %s download finished but workspace is incomplete", albumID)
		}
		return RoleFollower, ws, nil
	case <-timer.C:
		return RoleFollower, ws, ErrFetchWaitTimeout
	case <-ctx.Done():
		return RoleFollower, ws, ctx.Err()
	}
}
