package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/yaha/internal/platform/logger"
	"github.com/phrazzld/yaha/internal/psl"
)

// loadPSL loads the public suffix list snapshot, first replacing it with a
// fresh download when it is missing or older than the configured maximum
// age. A failed download is tolerated while an older snapshot exists.
func (a *App) loadPSL(ctx context.Context, allowDownload bool, now time.Time) (*psl.List, error) {
	log := logger.FromContext(ctx)
	path := a.cfg.Paths.PSL

	if allowDownload && a.cfg.Paths.PSLURL != "" && pslOutdated(path, now, a.cfg.Paths.PSLMaxAge) {
		if err := a.downloadPSL(ctx, path); err != nil {
			if _, statErr := os.Stat(path); statErr != nil {
				return nil, fmt.Errorf("downloading public suffix list: %w", err)
			}
			log.Warn("public suffix list refresh failed, using existing snapshot",
				"path", path,
				"error", err)
		}
	}

	list, err := psl.LoadFile(path)
	if err != nil {
		return nil, err
	}
	counts := list.Counts()
	log.Info("public suffix list loaded",
		"version", list.Version(),
		"rules", counts.Total(),
		"wildcards", counts.Wildcard,
		"exceptions", counts.Exception)
	return list, nil
}

func pslOutdated(path string, now time.Time, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return maxAge > 0 && now.Sub(info.ModTime()) > maxAge
}

// downloadPSL fetches the list and replaces path only if the download
// parses.
func (a *App) downloadPSL(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)
	url := a.cfg.Paths.PSLURL
	log.Info("downloading public suffix list", "url", url)

	content, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if _, err := psl.Parse(content.Body); err != nil {
		return fmt.Errorf("parsing downloaded list: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".psl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing public suffix list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing public suffix list: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing public suffix list: %w", err)
	}

	log.Info("public suffix list updated", "path", path, "bytes", len(content.Body))
	return nil
}
