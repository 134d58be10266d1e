package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// DownloadRequest asks the host to save a URL under a filename.
type DownloadRequest struct {
	URL      string
	Filename string
}

// Downloader is the host platform's native download mechanism.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) (string, error)
	Folder() string
}

// FileDownloader saves downloads into a directory on an afero filesystem.
type FileDownloader struct {
	fs     afero.Afero
	dir    string
	client *http.Client

	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewFileDownloader creates a downloader writing into dir.
func NewFileDownloader(fs afero.Fs, dir string, client *http.Client) *FileDownloader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &FileDownloader{
		fs:       afero.Afero{Fs: fs},
		dir:      dir,
		client:   client,
		reserved: make(map[string]struct{}),
	}
}

// Folder returns the download directory.
func (d *FileDownloader) Folder() string {
	return d.dir
}

// Download fetches req.URL into the download directory and returns a download id.
// Existing files are never overwritten; a numeric suffix is added instead. Any
// refusal is reported as ErrDownloadRejected.
func (d *FileDownloader) Download(ctx context.Context, req DownloadRequest) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", models.NewError(models.ErrDownloadRejected, "unsupported download URL", err)
	}

	name := SanitizeFilename(req.Filename)
	if req.Filename == "" {
		name = SanitizeFilename(path.Base(u.Path))
	}

	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return "", models.NewError(models.ErrDownloadRejected, "download folder unavailable", err)
	}

	target, release, err := d.reserve(name)
	if err != nil {
		return "", models.NewError(models.ErrDownloadRejected, "no free file name", err)
	}
	defer release()

	id := uuid.New().String()
	written, err := d.fetch(ctx, u.String(), target)
	if err != nil {
		return "", models.NewError(models.ErrDownloadRejected, "download failed", err)
	}

	logger.Log.Info("Download completed",
		zap.String("downloadId", id),
		zap.String("file", target),
		zap.String("size", humanize.Bytes(uint64(written))),
	)

	return id, nil
}

func (d *FileDownloader) fetch(ctx context.Context, rawURL, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	partial := target + ".part"
	f, err := d.fs.Create(partial)
	if err != nil {
		return 0, err
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = d.fs.Remove(partial)
		if copyErr != nil {
			return 0, copyErr
		}
		return 0, closeErr
	}

	if err := d.fs.Rename(partial, target); err != nil {
		_ = d.fs.Remove(partial)
		return 0, err
	}

	return written, nil
}

// reserve picks an unused path for name, adding " (n)" before the extension on conflict.
func (d *FileDownloader) reserve(name string) (string, func(), error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		target := filepath.Join(d.dir, candidate)

		if _, taken := d.reserved[target]; taken {
			continue
		}
		exists, err := d.fs.Exists(target)
		if err != nil {
			return "", nil, err
		}
		if exists {
			continue
		}

		d.reserved[target] = struct{}{}
		return target, func() {
			d.mu.Lock()
			delete(d.reserved, target)
			d.mu.Unlock()
		}, nil
	}

	return "", nil, fmt.Errorf("too many files named %s", name)
}
