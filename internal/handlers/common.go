package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/docintel/internal/llm"
	"github.com/lehigh-university-libraries/docintel/internal/models"
	"github.com/lehigh-university-libraries/docintel/internal/processor"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/lehigh-university-libraries/docintel/internal/storage"
)

// maxUploadSize caps uploaded documents.
const maxUploadSize = 10 * 1024 * 1024

// ProviderFactory returns the LLM provider for a provider name.
type ProviderFactory func(name string) (providers.Provider, error)

// ProcessorFactory builds the processor for a document.
type ProcessorFactory func(uri string, p providers.Provider) *processor.DocumentProcessor

type Handler struct {
	sessionStore *storage.SessionStore
	newProvider  ProviderFactory
	newProcessor ProcessorFactory
	uploadsDir   string
}

func New() *Handler {
	return NewWithFactories(llm.NewProvider, processor.FromDigitalPDF)
}

// NewWithFactories returns a handler that builds providers and processors
// with the given functions.
func NewWithFactories(newProvider ProviderFactory, newProcessor ProcessorFactory) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		newProvider:  newProvider,
		newProcessor: newProcessor,
		uploadsDir:   "uploads",
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.ExtractionSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// File operation helpers
func (h *Handler) ensureUploadsDir() error {
	return os.MkdirAll(h.uploadsDir, 0755)
}
