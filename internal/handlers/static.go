package handlers

import (
	"embed"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed static
var staticFiles embed.FS

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	filepath := strings.TrimPrefix(r.URL.Path, "/")
	filepath = strings.TrimPrefix(filepath, "static/")
	if filepath == "" {
		filepath = "index.html"
	}

	// Check if a document URL parameter is provided
	if docURL := r.URL.Query().Get("url"); docURL != "" {
		q := r.URL.Query()
		req := extractRequest{
			URL:      docURL,
			Preset:   q.Get("preset"),
			Provider: q.Get("provider"),
			Model:    q.Get("model"),
			Effort:   q.Get("effort"),
		}
		if req.Preset == "" {
			req.Preset = "license"
		}
		sessionID, err := h.createSessionFromURL(r, req)
		if err != nil {
			slog.Error("Failed to create session from URL", "url", docURL, "error", err)
			http.Error(w, "Failed to process document URL: "+err.Error(), http.StatusBadRequest)
			return
		}

		// Redirect to the homepage
		http.Redirect(w, r, "/?session="+sessionID, http.StatusFound)
		return
	}

	// Prevent directory traversal attacks
	if strings.Contains(filepath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	data, err := staticFiles.ReadFile("static/" + filepath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(filepath, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(filepath, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(filepath, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write static file", "path", filepath, "err", err)
	}
}

// createSessionFromURL runs an extraction for req and returns the session
// ID. Extraction failures are kept on the session so the page can show them.
func (h *Handler) createSessionFromURL(r *http.Request, req extractRequest) (string, error) {
	if err := checkDocumentURL(req.URL); err != nil {
		return "", err
	}
	slog.Info("Extraction requested from URL", "url", req.URL, "remote_addr", r.RemoteAddr)

	cfg, err := req.config()
	if err != nil {
		return "", err
	}
	provider, err := h.newProvider(cfg.LLM.Provider)
	if err != nil {
		return "", err
	}

	session, err := h.extract(r.Context(), source{URL: req.URL}, cfg, provider)
	if session == nil {
		return "", err
	}

	slog.Info("Session created from URL", "session_id", session.ID, "url", req.URL)
	return session.ID, nil
}
