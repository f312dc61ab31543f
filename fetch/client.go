// Package fetch implements the HTTP content fetcher consumed by the album
// coordinator. The remote source serves album metadata as JSON and plain
// image files per chapter.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MiaowFISH/jmcomic-crawler/album"
	"github.com/MiaowFISH/jmcomic-crawler/config"
	"golang.org/x/sync/errgroup"
)

type albumPayload struct {
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	Tags      []string         `json:"tags"`
	PageCount int              `json:"page_count"`
	Chapters  []chapterPayload `json:"chapters"`
}

type chapterPayload struct {
	Title  string   `json:"title"`
	Images []string `json:"images"`
}

type Client struct {
	base         string
	workers      int
	maxImageSize int64
	timeout      time.Duration
	logger       *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	workers := cfg.FetchWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Client{
		base:         strings.TrimSuffix(cfg.SourceBase, "/"),
		workers:      workers,
		maxImageSize: cfg.MaxImageSize,
		timeout:      cfg.FetchTimeout,
		logger:       logger,
	}
}

// FetchAlbum downloads album metadata and every chapter's images into the
// workspace. The proxy value is the effective one: the caller has already
// applied per-task override over the configured default.
func (c *Client) FetchAlbum(ctx context.Context, ws *album.Workspace, proxy string, progress album.ProgressFunc) error {
	httpClient, err := c.httpClient(proxy)
	if err != nil {
		return err
	}

	payload, err := c.fetchAlbumInfo(ctx, httpClient, ws.AlbumID())
	if err != nil {
		return err
	}
	ws.SetAlbumInfo(payload.Title, payload.Author, payload.Tags, payload.PageCount)

	total := 0
	for _, ch := range payload.Chapters {
		total += len(ch.Images)
	}
	c.logger.Info("album info fetched",
		"albumId", ws.AlbumID(),
		"chapters", len(payload.Chapters),
		"images", total,
	)

	var saved int64
	for i, ch := range payload.Chapters {
		chapterName := fmt.Sprintf("%03d_%s", i+1, ch.Title)
		dir, err := ws.ChapterDir(chapterName)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for page, imageURL := range ch.Images {
			page, imageURL := page, imageURL
			g.Go(func() error {
				dst, err := c.downloadImage(gctx, httpClient, imageURL, dir, page+1)
				if err != nil {
					return err
				}
				ws.RecordImage(album.ImageRef{
					Chapter: chapterName,
					Page:    page + 1,
					URL:     imageURL,
					Path:    dst,
				})
				if progress != nil {
					progress(int(atomic.AddInt64(&saved, 1)), total)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("chapter %q: %w", ch.Title, err)
		}
	}
	return nil
}

func (c *Client) fetchAlbumInfo(ctx context.Context, httpClient *http.Client, albumID string) (*albumPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/albums/"+url.PathEscape(albumID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("album info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("album info request: bad status %s", resp.Status)
	}

	var payload albumPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode album info: %w", err)
	}
	return &payload, nil
}

func (c *Client) downloadImage(ctx context.Context, httpClient *http.Client, imageURL, dir string, page int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: bad status %s", imageURL, resp.Status)
	}

	dst := filepath.Join(dir, fmt.Sprintf("p%04d%s", page, imageExt(imageURL)))
	file, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer file.Close()

	lr := &io.LimitedReader{R: resp.Body, N: c.maxImageSize + 1}
	if _, err := io.Copy(file, lr); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("save %s: %w", imageURL, err)
	}
	if lr.N <= 0 {
		os.Remove(dst)
		return "", fmt.Errorf("save %s: image exceeds %d bytes", imageURL, c.maxImageSize)
	}
	return dst, nil
}

func (c *Client) httpClient(proxy string) (*http.Client, error) {
	client := &http.Client{Timeout: c.timeout}
	if proxy != "" {
		proxyURL, err := url.Parse("http://" + proxy)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", proxy, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client, nil
}

func imageExt(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	}
	return ".jpg"
}
