// Package source fetches annotation payloads for the danmaku engine.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"danmaku-overlay/internal/danmaku"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 32 << 20
)

var (
	// ErrStatus is returned for non-2xx HTTP responses.
	ErrStatus = errors.New("unexpected response status")
	// ErrTooLarge is returned when a payload exceeds the size limit.
	ErrTooLarge = errors.New("payload too large")
	// ErrUnsupportedURL is returned for URLs the fetcher refuses to read.
	ErrUnsupportedURL = errors.New("unsupported source url")
)

// HTTPFetcher fetches payloads over HTTP(S). Paths and file:// URLs are read
// from the local filesystem only when AllowLocal is set.
type HTTPFetcher struct {
	Client     *http.Client
	AllowLocal bool
}

// NewHTTPFetcher returns a fetcher with a bounded request timeout. If client
// is nil a new client is created.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPFetcher{Client: client}
}

// Fetch implements danmaku.Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (danmaku.Payload, error) {
	if path, ok := localPath(url); ok {
		if !f.AllowLocal {
			return danmaku.Payload{}, ErrUnsupportedURL
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return danmaku.Payload{}, err
		}
		return danmaku.Payload{Raw: raw}, nil
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return danmaku.Payload{}, ErrUnsupportedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return danmaku.Payload{}, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return danmaku.Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return danmaku.Payload{}, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return danmaku.Payload{}, err
	}
	if len(raw) > maxBodyBytes {
		return danmaku.Payload{}, ErrTooLarge
	}
	return danmaku.Payload{Raw: raw}, nil
}

func localPath(url string) (string, bool) {
	if strings.HasPrefix(url, "file://") {
		return strings.TrimPrefix(url, "file://"), true
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return "", false
	}
	return url, !strings.Contains(url, "://")
}

// Static serves pre-parsed tuples keyed by URL.
type Static map[string][]danmaku.Tuple

// Fetch implements danmaku.Fetcher.
func (s Static) Fetch(_ context.Context, url string) (danmaku.Payload, error) {
	ts, ok := s[url]
	if !ok {
		return danmaku.Payload{}, fmt.Errorf("%w: 404 Not Found", ErrStatus)
	}
	return danmaku.Payload{Tuples: ts}, nil
}
