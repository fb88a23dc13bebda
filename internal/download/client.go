// Package download fetches the raw inputs the pipeline consumes: the
// Chicago Fed quarterly call report archives and the Federal Reserve
// MDRM data dictionary. Requests are paced and retried, every transfer
// lands via a temp file and rename, and a checksum manifest kept next
// to the archives lets a later run detect truncated downloads.
package download

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/mplosser/data-call-report/internal/config"
)

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 30 * time.Second

// Client is the shared HTTP download client. Requests pass through one
// rate limiter regardless of how many fetchers use the client, so the
// pacing holds even when quarters download concurrently.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewClient returns a client configured from cfg. Zero timeout and rate
// fall back to the config defaults. A nil logger falls back to
// slog.Default.
func NewClient(cfg config.DownloadConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retries: cfg.Retries,
		backoff: cfg.RetryBackoff,
		logger:  logger.With(slog.String("component", "download")),
	}
}

// Fetch downloads url into dest and returns the size and BLAKE2b-256
// checksum of the body. Server errors and transport failures are
// retried with backoff; client errors such as a quarter the server
// never published fail on the first attempt.
func (c *Client) Fetch(ctx context.Context, url, dest string) (int64, string, error) {
	attempts := c.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, "", err
		}
		size, sum, err := c.fetchOnce(ctx, url, dest)
		if err == nil {
			c.logger.Info("downloaded file",
				slog.String("file", filepath.Base(dest)),
				slog.Int64("size_bytes", size),
				slog.Int("attempt", attempt))
			return size, sum, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		if attempt < attempts {
			delay := retryDelay(c.backoff, attempt)
			c.logger.Warn("download attempt failed, retrying",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, "", ctx.Err()
			}
		}
	}
	return 0, "", lastErr
}

// fetchOnce performs a single request. The body streams through the
// checksum into a temp file that only becomes dest once the transfer
// completed, so an interrupted fetch never leaves a partial archive.
func (c *Client) fetchOnce(ctx context.Context, url, dest string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", &statusError{code: resp.StatusCode, status: resp.Status}
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return 0, "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-")
	if err != nil {
		return 0, "", err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		tmp.Close()
		return 0, "", err
	}
	if err := tmp.Close(); err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// statusError reports a non-OK HTTP response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.status
}

// retryable reports whether another attempt can succeed. Server errors
// and transport failures are transient; other HTTP errors are not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}
	return true
}

// retryDelay doubles the base delay per attempt up to maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base * time.Duration(1<<(attempt-1))
	if delay > maxRetryDelay || delay <= 0 {
		return maxRetryDelay
	}
	return delay
}
