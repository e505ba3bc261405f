package dispatch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Downloader hands photo files to the user outside the email.
type Downloader interface {
	Download(ctx context.Context, batch string, files []Attachment) ([]string, error)
}

// DirDownloader writes files under Dir and returns their URLs below URLPrefix.
type DirDownloader struct {
	Dir       string
	URLPrefix string
}

func NewDirDownloader(dir, urlPrefix string) *DirDownloader {
	return &DirDownloader{Dir: dir, URLPrefix: urlPrefix}
}

func (d *DirDownloader) Download(ctx context.Context, batch string, files []Attachment) ([]string, error) {
	dir := filepath.Join(d.Dir, filepath.Base(batch))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		name := filepath.Base(f.Name)
		if err := os.WriteFile(filepath.Join(dir, name), f.Data, 0o644); err != nil {
			return urls, fmt.Errorf("failed to write %s: %w", name, err)
		}
		urls = append(urls, path.Join(d.URLPrefix, filepath.Base(batch), name))
	}
	return urls, nil
}
