package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/document"
	"github.com/lehigh-university-libraries/docintel/internal/llm"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/lehigh-university-libraries/docintel/internal/schema"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingResponseFormat is returned when no schema is configured.
	ErrMissingResponseFormat = errors.New("response_format is required")

	// ErrInvalidKey is returned when a config file contains an unrecognised key.
	ErrInvalidKey = errors.New("invalid key")
)

// Config is the full extraction configuration
type Config struct {
	ResponseFormat ResponseFormat   `yaml:"response_format" json:"response_format"`
	LLM            LLMConfig        `yaml:"llm_config" json:"llm_config"`
	Extraction     ExtractionConfig `yaml:"extraction_config" json:"extraction_config"`
}

// LLMConfig selects the model and how it is prompted
type LLMConfig struct {
	Provider        string    `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model           string    `yaml:"model,omitempty" json:"model,omitempty"`
	Reasoning       Reasoning `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Temperature     *float64  `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxOutputTokens int       `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`
	SystemPrompt    string    `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	UserPrompt      string    `yaml:"user_prompt,omitempty" json:"user_prompt,omitempty"`
}

// Reasoning holds the reasoning options of the model
type Reasoning struct {
	Effort providers.ReasoningEffort `yaml:"effort,omitempty" json:"effort,omitempty"`
}

// ExtractionConfig controls citations and which pages are sent to the model
type ExtractionConfig struct {
	IncludeCitations *bool                   `yaml:"include_citations,omitempty" json:"include_citations,omitempty"`
	ExtractionMode   document.ExtractionMode `yaml:"extraction_mode,omitempty" json:"extraction_mode,omitempty"`
	PageNumbers      []int                   `yaml:"page_numbers,omitempty" json:"page_numbers,omitempty"`
}

// Citations reports whether citations are requested. Defaults to true.
func (e ExtractionConfig) Citations() bool {
	return e.IncludeCitations == nil || *e.IncludeCitations
}

// Mode returns the extraction mode, defaulting to single_pass.
func (e ExtractionConfig) Mode() document.ExtractionMode {
	if e.ExtractionMode == "" {
		return document.SinglePass
	}
	return e.ExtractionMode
}

// New returns a config for s with every other option at its default.
func New(s *schema.Schema) *Config {
	return &Config{ResponseFormat: ResponseFormat{Schema: s}}
}

// Load decodes a YAML or JSON config. Unknown keys are rejected. A
// response_format given as a file path is resolved against baseDir.
func Load(r io.Reader, baseDir string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingResponseFormat
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.ResponseFormat.resolve(baseDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a config from path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Load(f, filepath.Dir(path))
}

// ApplyDefaults fills in the provider and model when unset.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = llm.DefaultProvider()
	}
	if c.LLM.Model == "" {
		c.LLM.Model = llm.DefaultModelFor(c.LLM.Provider)
	}
}

// Validate checks every option.
func (c *Config) Validate() error {
	if c.ResponseFormat.Schema == nil {
		return ErrMissingResponseFormat
	}
	if err := c.ResponseFormat.Schema.Validate(); err != nil {
		return fmt.Errorf("response_format: %w", err)
	}
	if _, err := providers.ParseReasoningEffort(string(c.LLM.Reasoning.Effort)); err != nil {
		return fmt.Errorf("llm_config.reasoning.effort: %w", err)
	}
	if _, err := document.ParseExtractionMode(string(c.Extraction.ExtractionMode)); err != nil {
		return fmt.Errorf("extraction_config.extraction_mode: %w", err)
	}
	for _, p := range c.Extraction.PageNumbers {
		if p < 0 {
			return fmt.Errorf("extraction_config.page_numbers: page %d is negative", p)
		}
	}
	return nil
}
