package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/docintel/internal/config"
	"github.com/lehigh-university-libraries/docintel/internal/fetcher"
	"github.com/lehigh-university-libraries/docintel/internal/models"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/lehigh-university-libraries/docintel/internal/schema"
	"github.com/lehigh-university-libraries/docintel/internal/utils"
)

type extractRequest struct {
	URL              string          `json:"url"`
	Schema           json.RawMessage `json:"schema"`
	Preset           string          `json:"preset"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	Effort           string          `json:"effort"`
	IncludeCitations *bool           `json:"include_citations"`
	PageNumbers      []int           `json:"page_numbers"`
}

// source is either uploaded bytes or a URL the parser downloads itself.
type source struct {
	URL      string
	Data     []byte
	Filename string
}

func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		req extractRequest
		src source
	)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := checkDocumentURL(req.URL); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		src.URL = req.URL
	} else {
		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Limit file size to 10MB
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if len(data) >= maxUploadSize {
			h.writeError(w, "File too large (max 10MB)", http.StatusBadRequest)
			return
		}
		src.Data = data
		src.Filename = header.Filename

		req, err = formRequest(r)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	cfg, err := req.config()
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	provider, err := h.newProvider(cfg.LLM.Provider)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.extract(r.Context(), src, cfg, provider)
	if session == nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if session.Failed() {
		h.writeJSONStatus(w, http.StatusBadGateway, session)
		return
	}
	h.writeJSON(w, session)
}

// extract runs the extraction and records a session. A nil session means
// the document could not be prepared; extraction failures are recorded on
// the returned session.
func (h *Handler) extract(ctx context.Context, src source, cfg *config.Config, provider providers.Provider) (*models.ExtractionSession, error) {
	uri := src.URL
	filename := src.Filename
	if src.Data != nil {
		if err := h.ensureUploadsDir(); err != nil {
			return nil, fmt.Errorf("failed to create uploads directory: %w", err)
		}
		ext := filepath.Ext(filename)
		if ext == "" {
			ext = ".pdf"
		}
		// Identical uploads may overlap, so each request gets its own file
		f, err := os.CreateTemp(h.uploadsDir, utils.CalculateDataMD5(src.Data)+"-*"+ext)
		if err != nil {
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
		uri = f.Name()
		_, err = f.Write(src.Data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(uri)
			return nil, fmt.Errorf("failed to save document: %w", err)
		}
		defer func() {
			if err := os.Remove(uri); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Failed to remove upload", "path", uri, "err", err)
			}
		}()
		slog.Info("Document saved", "filename", filename, "path", uri)
	} else {
		filename = path.Base(strings.SplitN(src.URL, "?", 2)[0])
	}

	schemaJSON, err := json.Marshal(cfg.ResponseFormat.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	session := &models.ExtractionSession{
		ID:        uuid.NewString(),
		Filename:  filename,
		URI:       src.URL,
		Schema:    schemaJSON,
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		Effort:    string(cfg.LLM.Reasoning.Effort),
		Citations: cfg.Extraction.Citations(),
		Pages:     cfg.Extraction.PageNumbers,
		CreatedAt: time.Now(),
	}

	slog.Info("Starting extraction", "session_id", session.ID, "filename", filename, "provider", session.Provider, "model", session.Model)
	start := time.Now()
	result, err := h.newProcessor(uri, provider).Extract(ctx, cfg)
	session.Duration = time.Since(start)
	if err != nil {
		slog.Error("Extraction failed", "session_id", session.ID, "err", err)
		session.Error = err.Error()
	} else {
		session.Data = result.ExtractedData
		session.Metadata = result.Metadata
		slog.Info("Extraction complete", "session_id", session.ID, "duration", session.Duration)
	}

	h.sessionStore.Set(session)
	return session, err
}

// checkDocumentURL only admits http(s) URLs so clients cannot reach files on
// the server.
func checkDocumentURL(u string) error {
	if u == "" {
		return errors.New("url is required")
	}
	if !fetcher.IsRemote(u) {
		return errors.New("url must be an http or https URL")
	}
	return nil
}

func formRequest(r *http.Request) (extractRequest, error) {
	req := extractRequest{
		Preset:   r.FormValue("preset"),
		Provider: r.FormValue("provider"),
		Model:    r.FormValue("model"),
		Effort:   r.FormValue("effort"),
	}
	if s := strings.TrimSpace(r.FormValue("schema")); s != "" {
		req.Schema = json.RawMessage(s)
	}
	if v := r.FormValue("include_citations"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid include_citations %q", v)
		}
		req.IncludeCitations = &b
	}
	pages, err := parsePageNumbers(r.FormValue("page_numbers"))
	if err != nil {
		return req, err
	}
	req.PageNumbers = pages
	return req, nil
}

// parsePageNumbers reads a comma separated page list such as "0, 2".
func parsePageNumbers(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func (req extractRequest) schema() (*schema.Schema, error) {
	text := strings.TrimSpace(string(req.Schema))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(req.Schema, &s); err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		text = strings.TrimSpace(s)
	}

	if text == "" || text == "null" {
		if req.Preset == "" {
			return nil, schema.ErrEmptySchema
		}
		s, ok := schema.Preset(req.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", req.Preset, strings.Join(schema.PresetNames(), ", "))
		}
		return s, nil
	}

	if s, ok := schema.Preset(text); ok {
		return s, nil
	}
	return schema.Parse([]byte(text))
}

func (req extractRequest) config() (*config.Config, error) {
	s, err := req.schema()
	if err != nil {
		return nil, err
	}

	cfg := config.New(s)
	cfg.LLM.Provider = strings.ToLower(req.Provider)
	cfg.LLM.Model = req.Model
	cfg.LLM.Reasoning.Effort = providers.ReasoningEffort(strings.ToLower(req.Effort))
	cfg.Extraction.IncludeCitations = req.IncludeCitations
	cfg.Extraction.PageNumbers = req.PageNumbers
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
