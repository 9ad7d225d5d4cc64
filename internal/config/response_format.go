package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/docintel/internal/schema"
	"gopkg.in/yaml.v3"
)

// ResponseFormat is the schema to extract. In a config file it is an
// inline schema, the name of a preset, or a path to a schema file.
type ResponseFormat struct {
	Schema *schema.Schema

	ref string
}

// UnmarshalYAML accepts an inline mapping or a scalar reference.
func (r *ResponseFormat) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.ref = node.Value
		return nil
	case yaml.MappingNode:
		s, err := schema.FromNode(node)
		if err != nil {
			return fmt.Errorf("response_format: %w", err)
		}
		r.Schema = s
		return nil
	default:
		return fmt.Errorf("response_format must be a schema, preset name or file path (line %d)", node.Line)
	}
}

// MarshalJSON writes the resolved schema.
func (r ResponseFormat) MarshalJSON() ([]byte, error) {
	if r.Schema == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Schema)
}

// MarshalYAML writes the resolved schema in its JSON form, which is valid YAML.
func (r ResponseFormat) MarshalYAML() (any, error) {
	if r.Schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(r.Schema)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return node.Content[0], nil
}

func (r *ResponseFormat) resolve(baseDir string) error {
	if r.Schema != nil || r.ref == "" {
		return nil
	}
	s, err := ResolveSchema(r.ref, baseDir)
	if err != nil {
		return fmt.Errorf("response_format: %w", err)
	}
	r.Schema = s
	return nil
}

// ResolveSchema turns a preset name or schema file path into a schema.
func ResolveSchema(ref, baseDir string) (*schema.Schema, error) {
	if s, ok := schema.Preset(ref); ok {
		return s, nil
	}

	path := ref
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%q is neither a preset (%v) nor a readable schema file: %w", ref, schema.PresetNames(), err)
	}
	return schema.Parse(data)
}
