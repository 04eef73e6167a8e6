package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
)

// ImageResult summarizes one image download pass.
type ImageResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	FailedURLs []string
}

// ImageDownloader saves the image attachments of stored posts to disk,
// named by post id so a re-run only fetches what is missing.
type ImageDownloader struct {
	store      harbor.Store
	httpClient *http.Client
	dir        string
	pageSize   int
	logger     harbor.Logger
}

func NewImageDownloader(store harbor.Store, dir string, pageSize int, logger harbor.Logger) *ImageDownloader {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &ImageDownloader{
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dir:        dir,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// Run downloads every image attachment. Individual fetch failures are
// collected in the result, not returned as errors.
func (d *ImageDownloader) Run(ctx context.Context) (*ImageResult, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	result := &ImageResult{}
	for offset := 0; ; offset += d.pageSize {
		posts, err := d.store.PostsPage(offset, d.pageSize)
		if err != nil {
			return nil, fmt.Errorf("loading posts page at %d: %w", offset, err)
		}
		for _, p := range posts {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			ext, ok := imageExt(p.Attachment)
			if !ok {
				continue
			}
			path := filepath.Join(d.dir, p.PostID+"."+ext)
			if _, err := os.Stat(path); err == nil {
				result.Skipped++
				continue
			}
			if err := d.fetch(ctx, p.Attachment.URL, path); err != nil {
				d.logger.Warn("image download failed",
					"post", p.PostID, "url", p.Attachment.URL, "error", err.Error())
				result.Failed++
				result.FailedURLs = append(result.FailedURLs, p.Attachment.URL)
				continue
			}
			result.Downloaded++
		}
		if len(posts) < d.pageSize {
			break
		}
	}
	d.logger.Info("image pass complete",
		"downloaded", result.Downloaded, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (d *ImageDownloader) fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func imageExt(a *model.Attachment) (string, bool) {
	if a == nil {
		return "", false
	}
	switch a.Kind {
	case model.AttachmentJPG:
		return "jpg", true
	case model.AttachmentPNG:
		return "png", true
	case model.AttachmentGIF:
		return "gif", true
	}
	return "", false
}
