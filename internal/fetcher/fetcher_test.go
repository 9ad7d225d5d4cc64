package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		uri      string
		expected bool
	}{
		{"https://example.com/a.pdf", true},
		{"HTTP://example.com/a.pdf", true},
		{"/tmp/a.pdf", false},
		{"file:///tmp/a.pdf", false},
		{"a.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			if got := IsRemote(tt.uri); got != tt.expected {
				t.Errorf("IsRemote(%q) = %v, want %v", tt.uri, got, tt.expected)
			}
		})
	}
}

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f := New()
	for _, uri := range []string{path, "file://" + path} {
		data, err := f.Fetch(context.Background(), uri)
		if err != nil {
			t.Fatalf("Fetch(%q) failed: %v", uri, err)
		}
		if string(data) != "%PDF-1.4" {
			t.Errorf("Expected file contents, got %q", data)
		}
	}

	if _, err := f.Fetch(context.Background(), filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestFetchRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer server.Close()

	f := &Fetcher{HTTPClient: server.Client()}

	data, err := f.Fetch(context.Background(), server.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("Expected downloaded bytes, got %q", data)
	}

	_, err = f.Fetch(context.Background(), server.URL+"/missing.pdf")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", statusErr.StatusCode)
	}
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Fetch(ctx, server.URL); err == nil {
		t.Error("Expected error for cancelled context, got nil")
	}
}
