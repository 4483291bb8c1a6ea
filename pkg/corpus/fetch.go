package corpus

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsURL reports whether a location should be downloaded rather than opened.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Fetch downloads url to localPath unless localPath already exists. The file
// only appears at localPath once the download completes.
func Fetch(ctx context.Context, url, localPath string, timeout time.Duration) error {
	if _, err := os.Stat(localPath); err == nil {
		zap.L().Debug("using cached download", zap.String("path", localPath))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrapf(err, "fetch: build request for %q", url)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "fetch: get %q", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("fetch: get %q: status %d", url, resp.StatusCode)
	}

	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return eris.Wrap(err, "fetch: create directory")
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".*.part")
	if err != nil {
		return eris.Wrap(err, "fetch: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "fetch: download %q", url)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "fetch: close temp file")
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return eris.Wrap(err, "fetch: move download into place")
	}

	zap.L().Info("downloaded",
		zap.String("url", url),
		zap.String("path", localPath),
		zap.Int64("bytes", n),
	)
	return nil
}
