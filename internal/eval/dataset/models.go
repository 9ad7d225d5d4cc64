package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/schema"
)

// ErrNoSchema is returned for a case that names neither a preset nor a schema.
var ErrNoSchema = errors.New("case has no preset or schema")

// Case is one labelled document in an evaluation dataset
type Case struct {
	ID          string          `json:"id"`
	URI         string          `json:"uri"`
	Preset      string          `json:"preset,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Expected    map[string]any  `json:"expected"`
	PageNumbers []int           `json:"page_numbers,omitempty"`
}

// parquetCase is the Parquet row layout. Schema and expected values are
// stored as JSON text since Parquet has no untyped map column.
type parquetCase struct {
	ID          string  `parquet:"id"`
	URI         string  `parquet:"uri"`
	Preset      string  `parquet:"preset"`
	Schema      string  `parquet:"schema"`
	Expected    string  `parquet:"expected"`
	PageNumbers []int64 `parquet:"page_numbers,list"`
}

func (p parquetCase) toCase() (Case, error) {
	c := Case{
		ID:     p.ID,
		URI:    p.URI,
		Preset: p.Preset,
	}
	if p.Schema != "" {
		c.Schema = json.RawMessage(p.Schema)
	}
	if p.Expected != "" {
		if err := json.Unmarshal([]byte(p.Expected), &c.Expected); err != nil {
			return c, fmt.Errorf("case %s: invalid expected JSON: %w", p.ID, err)
		}
	}
	for _, n := range p.PageNumbers {
		c.PageNumbers = append(c.PageNumbers, int(n))
	}
	return c, nil
}

// Validate checks the fields every case needs
func (c *Case) Validate() error {
	if c.ID == "" {
		return errors.New("case id is required")
	}
	if c.URI == "" {
		return fmt.Errorf("case %s: uri is required", c.ID)
	}
	if c.Preset == "" && len(c.Schema) == 0 {
		return fmt.Errorf("case %s: %w", c.ID, ErrNoSchema)
	}
	return nil
}

// ResolveSchema returns the case's inline schema, or its preset. An inline
// schema may be a JSON object or a string holding JSON or YAML.
func (c *Case) ResolveSchema() (*schema.Schema, error) {
	if len(c.Schema) > 0 && string(c.Schema) != "null" {
		data := []byte(c.Schema)
		var text string
		if err := json.Unmarshal(c.Schema, &text); err == nil {
			if s, ok := schema.Preset(strings.TrimSpace(text)); ok {
				return s, nil
			}
			data = []byte(text)
		}
		return schema.Parse(data)
	}

	if c.Preset == "" {
		return nil, ErrNoSchema
	}
	s, ok := schema.Preset(c.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", c.Preset, strings.Join(schema.PresetNames(), ", "))
	}
	return s, nil
}
