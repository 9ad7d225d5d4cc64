package models

import (
	"encoding/json"
	"time"

	"github.com/lehigh-university-libraries/docintel/internal/document"
)

// ExtractionSession records one extraction request made through the web interface
type ExtractionSession struct {
	ID        string                            `json:"id"`
	Filename  string                            `json:"filename"`
	URI       string                            `json:"uri"`
	Schema    json.RawMessage                   `json:"schema,omitempty"`
	Provider  string                            `json:"provider,omitempty"`
	Model     string                            `json:"model,omitempty"`
	Effort    string                            `json:"effort,omitempty"`
	Citations bool                              `json:"include_citations"`
	Pages     []int                             `json:"page_numbers,omitempty"`
	Data      map[string]any                    `json:"extracted_data,omitempty"`
	Metadata  map[string]document.FieldMetadata `json:"metadata,omitempty"`
	Error     string                            `json:"error,omitempty"`
	Duration  time.Duration                     `json:"duration_ns"`
	CreatedAt time.Time                         `json:"created_at"`
}

// Failed reports whether the extraction ended in an error
func (s *ExtractionSession) Failed() bool {
	return s.Error != ""
}
