package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxDocumentSize caps how many bytes are read from a single source.
const MaxDocumentSize = 50 * 1024 * 1024

// Fetcher retrieves documents from local paths or http(s) URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// New creates a fetcher with a 30 second HTTP timeout
func New() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatusError is returned when a download responds with a non-200 status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to download %s: HTTP %d", e.URL, e.StatusCode)
}

// IsRemote reports whether uri should be downloaded rather than read from disk.
func IsRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch returns the bytes behind uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if IsRemote(uri) {
		return f.download(ctx, uri)
	}

	path := strings.TrimPrefix(uri, "file://")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("document %s is too large (%d bytes, max %d)", path, info.Size(), MaxDocumentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	slog.Debug("Read local document", "path", path, "bytes", len(data))
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf, */*")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("document at %s exceeds %d bytes", url, MaxDocumentSize)
	}

	slog.Debug("Downloaded document", "url", url, "bytes", len(data), "content_type", resp.Header.Get("Content-Type"))
	return data, nil
}
