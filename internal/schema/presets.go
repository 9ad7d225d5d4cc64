package schema

import (
	"sort"
	"strings"
)

var presets = map[string]Schema{
	"license": {
		Name: "license",
		Fields: []Field{
			{Name: "license_name", Type: String},
		},
	},
	"invoice": {
		Name: "invoice",
		Fields: []Field{
			{Name: "invoice_number", Type: String},
			{Name: "invoice_date", Type: String},
			{Name: "due_date", Type: String},
			{Name: "vendor_name", Type: String},
			{Name: "vendor_address", Type: String},
			{Name: "total_amount", Type: String},
			{Name: "tax_amount", Type: String},
			{Name: "line_items", Type: Array, Items: &Field{Type: String}},
		},
	},
	"resume": {
		Name: "resume",
		Fields: []Field{
			{Name: "full_name", Type: String},
			{Name: "email", Type: String},
			{Name: "phone", Type: String},
			{Name: "summary", Type: String},
			{Name: "skills", Type: Array, Items: &Field{Type: String}},
			{Name: "experience", Type: Array, Items: &Field{Type: String}},
			{Name: "education", Type: Array, Items: &Field{Type: String}},
		},
	},
}

// Preset returns a copy of a built-in schema. Lookup is case-insensitive.
func Preset(name string) (*Schema, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	s := Schema{Name: p.Name, Fields: append([]Field(nil), p.Fields...)}
	return &s, true
}

// PresetNames lists the built-in schemas in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
