package schema

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrEmptySchema is returned when a schema declares no fields.
	ErrEmptySchema = errors.New("schema cannot be empty")

	// ErrTypeMismatch is returned when an extracted value cannot be coerced
	// to the declared field type.
	ErrTypeMismatch = errors.New("value does not match declared type")
)

// Type is the declared type of a field
type Type string

const (
	String  Type = "string"
	Integer Type = "integer"
	Number  Type = "number"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
)

// IsScalar reports whether t is one of the leaf types.
func (t Type) IsScalar() bool {
	switch t {
	case String, Integer, Number, Boolean:
		return true
	}
	return false
}

// Field describes one entry of a response schema.
// Items is set for arrays, Fields for objects.
type Field struct {
	Name        string
	Type        Type
	Description string
	Items       *Field
	Fields      []Field
}

// IsLeaf reports whether the field carries its own citations: scalars and
// arrays of scalars.
func (f Field) IsLeaf() bool {
	if f.Type.IsScalar() {
		return true
	}
	if f.Type == Array {
		return f.Items == nil || f.Items.Type.IsScalar()
	}
	return f.Type == Object && len(f.Fields) == 0
}

// Schema is an ordered set of fields the caller wants extracted
type Schema struct {
	Name   string
	Fields []Field
}

// FieldNames returns the top-level field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Validate checks that the schema declares at least one field.
func (s *Schema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return ErrEmptySchema
	}
	return nil
}

// MarshalJSON renders the schema in its full form, preserving field order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFields(&buf, s.Fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFields(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if err := writeField(buf, f); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeField(buf *bytes.Buffer, f Field) error {
	buf.WriteString(`{"type":`)
	t, _ := json.Marshal(string(f.Type))
	buf.Write(t)
	if f.Description != "" {
		d, err := json.Marshal(f.Description)
		if err != nil {
			return err
		}
		buf.WriteString(`,"description":`)
		buf.Write(d)
	}
	if f.Items != nil {
		buf.WriteString(`,"items":`)
		if err := writeField(buf, *f.Items); err != nil {
			return err
		}
	}
	if len(f.Fields) > 0 {
		buf.WriteString(`,"properties":`)
		if err := writeFields(buf, f.Fields); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
