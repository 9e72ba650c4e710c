package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/progress"
)

// ChecksumHeader carries the hex SHA-256 of the bundle.
const ChecksumHeader = "X-Checksum-Sha256"

// DefaultBackoff is the wait before each retry of a failed download.
var DefaultBackoff = []time.Duration{2 * time.Second, 4 * time.Second}

// StatusError is a non-200 answer from the download endpoint. It is not
// retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed: HTTP %d from %s", e.Code, e.URL)
}

type downloader struct {
	client  *http.Client
	out     io.Writer
	tty     bool
	logger  log.Logger
	backoff []time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch downloads url to dest, retrying transport failures. It returns the
// hex SHA-256 of what was written and the checksum the server announced,
// if any.
func (d *downloader) fetch(ctx context.Context, url, dest string) (sum, announced string, err error) {
	attempts := len(d.backoff) + 1
	for attempt := 1; ; attempt++ {
		sum, announced, err = d.fetchOnce(ctx, url, dest)
		if err == nil {
			return sum, announced, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) || ctx.Err() != nil || attempt == attempts {
			return "", "", err
		}

		wait := d.backoff[attempt-1]
		fmt.Fprintf(d.out, "Download failed (%v). Retrying in %s (attempt %d/%d)...\n", err, wait, attempt+1, attempts)
		d.logger.Warn("download attempt failed", "url", url, "attempt", attempt, "error", err)
		if err := d.sleep(ctx, wait); err != nil {
			return "", "", err
		}
	}
}

func (d *downloader) fetchOnce(ctx context.Context, url, dest string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	h := sha256.New()
	var w io.Writer = io.MultiWriter(f, h)
	var bar *progress.Writer
	if d.tty {
		bar = progress.NewLabeledWriter(w, resp.ContentLength, d.out, "Downloading update")
		w = bar
	} else if resp.ContentLength > 0 {
		fmt.Fprintf(d.out, "Downloading update (%s)...\n", progress.FormatBytes(resp.ContentLength))
	} else {
		fmt.Fprintln(d.out, "Downloading update...")
	}

	n, copyErr := io.Copy(w, resp.Body)
	if bar != nil {
		bar.Finish()
	}
	closeErr := f.Close()
	if copyErr != nil {
		return "", "", fmt.Errorf("download interrupted after %s: %w", progress.FormatBytes(n), copyErr)
	}
	if closeErr != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", dest, closeErr)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return "", "", fmt.Errorf("download truncated: got %d of %d bytes", n, resp.ContentLength)
	}

	announced := strings.ToLower(strings.TrimSpace(resp.Header.Get(ChecksumHeader)))
	return hex.EncodeToString(h.Sum(nil)), announced, nil
}
