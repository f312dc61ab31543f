package task

import (
	"errors"
	"fmt"
	"net"
	"regexp"

	"github.com/MiaowFISH/jmcomic-crawler/pack"
)

// Album IDs name directories under both the work and artifact roots, so
// anything that could traverse or alter a path is rejected outright.
var albumIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	// ErrNotFound is returned by status queries for unknown task IDs.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidParameter rejects a malformed submission before any task
	// is created.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Request is one packaging submission.
type Request struct {
	AlbumID      string  `json:"albumId" binding:"required"`
	OutputFormat string  `json:"outputFormat"`
	Quality      int     `json:"quality,omitempty" binding:"omitempty,min=1,max=100"`
	Encrypt      bool    `json:"encrypt"`
	Password     string  `json:"password,omitempty"`
	Compression  *int    `json:"compression,omitempty" binding:"omitempty,min=0,max=9"`
	Proxy        *string `json:"proxy,omitempty"`
}

// Normalize applies defaults and validates everything the HTTP binding
// cannot express. It must run before CacheKey.
func (r *Request) Normalize() error {
	if r.AlbumID == "" {
		return fmt.Errorf("%w: albumId is required", ErrInvalidParameter)
	}
	if !albumIDPattern.MatchString(r.AlbumID) {
		return fmt.Errorf("%w: albumId may contain only letters, digits, '-' and '_'", ErrInvalidParameter)
	}
	if r.OutputFormat == "" {
		r.OutputFormat = pack.FormatZip
	}
	if r.OutputFormat != pack.FormatZip && r.OutputFormat != pack.FormatPDF {
		return fmt.Errorf("%w: outputFormat must be zip or pdf", ErrInvalidParameter)
	}
	if r.Quality < 0 || r.Quality > 100 {
		return fmt.Errorf("%w: quality must be in 1..100", ErrInvalidParameter)
	}
	if r.Compression == nil {
		level := 6
		r.Compression = &level
	} else if *r.Compression < 0 || *r.Compression > 9 {
		return fmt.Errorf("%w: compression must be in 0..9", ErrInvalidParameter)
	}
	if r.Proxy != nil {
		host, port, err := net.SplitHostPort(*r.Proxy)
		if err != nil || host == "" || port == "" {
			return fmt.Errorf("%w: proxy must be host:port", ErrInvalidParameter)
		}
	}
	return nil
}
