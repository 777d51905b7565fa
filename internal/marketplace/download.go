package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/company/betterteams/internal/addon"
)

// PackageFiles are fetched for every addon, in this order.
var PackageFiles = []string{addon.ManifestFile, addon.ScriptFile}

// Downloader installs marketplace packages into a registry's layout.
type Downloader struct {
	client   *Client
	registry *addon.Registry
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

type DownloaderOption func(*Downloader)

// WithAttempts sets how many times a failed download is tried in total.
func WithAttempts(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func WithBackoff(backoff time.Duration) DownloaderOption {
	return func(d *Downloader) { d.backoff = backoff }
}

func WithDownloadLogger(log *slog.Logger) DownloaderOption {
	return func(d *Downloader) { d.log = log }
}

func NewDownloader(client *Client, registry *addon.Registry, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:   client,
		registry: registry,
		attempts: 2,
		backoff:  time.Second,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download installs kind/id, replacing any existing copy. The addon folder
// is removed after every failed attempt, so failure leaves nothing behind.
func (d *Downloader) Download(ctx context.Context, kind addon.Kind, id string) error {
	dir, err := d.registry.AddonDir(kind, id)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			d.log.Info("retrying download", "kind", kind, "id", id, "attempt", attempt, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.backoff):
			}
		}

		lastErr = d.downloadOnce(ctx, kind, id, dir)
		if lastErr == nil {
			return nil
		}

		os.RemoveAll(dir)
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
	}

	return fmt.Errorf("downloading %s %s after %d attempt(s): %w", kind, id, d.attempts, lastErr)
}

func (d *Downloader) downloadOnce(ctx context.Context, kind addon.Kind, id, dir string) error {
	// Clear the folder so files from a previous version never survive.
	os.RemoveAll(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s dir %s: %w", kind, id, err)
	}

	for _, filename := range PackageFiles {
		data, err := d.client.DownloadFile(ctx, kind, id, filename)
		if err != nil {
			return fmt.Errorf("downloading %s/%s: %w", id, filename, err)
		}

		switch filename {
		case addon.ManifestFile:
			data, err = pinManifestID(data, id)
			if err != nil {
				return fmt.Errorf("manifest for %s: %w", id, err)
			}
		case addon.ScriptFile:
			if lintErr := addon.LintScript(id+"/"+filename, data); lintErr != nil {
				d.log.Warn("downloaded script may not run", "kind", kind, "id", id, "err", lintErr)
			}
		}

		if err := writeFile(filepath.Join(dir, filename), data); err != nil {
			return fmt.Errorf("%s/%s: %w", id, filename, err)
		}
	}

	return nil
}

// pinManifestID makes sure the installed manifest carries the catalog id,
// so the addon is found under the id it was installed with.
func pinManifestID(data []byte, id string) ([]byte, error) {
	m, err := addon.ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.ID) != "" {
		return data, nil
	}
	return addon.SetManifestID(data, id)
}

func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving: %w", err)
	}
	return nil
}
