package task

import (
	"time"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusPackaging   Status = "packaging"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// AlbumMeta is the album metadata projected into a task status.
type AlbumMeta struct {
	Title     string   `json:"title,omitempty"`
	Author    string   `json:"author,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	PageCount int      `json:"pageCount,omitempty"`
}

// Task is one packaging request instance. Tasks are created at submission,
// mutated only by the Manager, and retained indefinitely for status queries.
type Task struct {
	ID          string    `json:"taskId"`
	AlbumID     string    `json:"albumId"`
	Status      Status    `json:"status"`
	Stage       string    `json:"stage,omitempty"`
	Progress    int       `json:"progress"`
	TotalImages int       `json:"totalImages,omitempty"`
	Duplicate   bool      `json:"duplicate"`
	Meta        AlbumMeta `json:"metadata"`
	CreatedAt   time.Time `json:"createdAt"`

	// Populated on done.
	ArtifactFilename string `json:"artifactFilename,omitempty"`
	DownloadURL      string `json:"downloadUrl,omitempty"`
	Password         string `json:"password,omitempty"`

	// Populated on failed.
	Error string `json:"error,omitempty"`

	key     string
	request Request
	// primary is the equivalent in-flight task this one attached to.
	primary *Task
	// done is closed when the task reaches a terminal state.
	done chan struct{}
}
