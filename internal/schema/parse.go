package schema

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse reads a schema from JSON or YAML. Each field is either a shorthand
// type name ("str", "int", "list[float]", ...) or a full definition with
// "type", "description", "properties" and "items". A mapping without a
// "type" key declares a nested object. Field order follows the document.
func Parse(data []byte) (*Schema, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return FromNode(&node)
}

// FromNode builds a schema from an already decoded YAML node.
func FromNode(node *yaml.Node) (*Schema, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, ErrEmptySchema
		}
		node = node.Content[0]
	}
	if node.Kind == 0 {
		return nil, ErrEmptySchema
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid schema: expected an object of field definitions, got %s", kindName(node))
	}

	fields, err := fieldsFromMapping(node, "")
	if err != nil {
		return nil, err
	}

	s := &Schema{Name: "response", Fields: fields}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func fieldsFromMapping(node *yaml.Node, path string) ([]Field, error) {
	fields := make([]Field, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if name == "" {
			return nil, fmt.Errorf("invalid schema: empty field name under %q", path)
		}
		if seen[name] {
			return nil, fmt.Errorf("invalid schema: duplicate field %q", joinPath(path, name))
		}
		seen[name] = true

		f, err := fieldFromNode(name, node.Content[i+1], joinPath(path, name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func fieldFromNode(name string, node *yaml.Node, path string) (Field, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		f := shorthand(node.Value)
		f.Name = name
		return f, nil

	case yaml.SequenceNode:
		// ["str"] or [{...}] declares a list of the single element type.
		if len(node.Content) != 1 {
			return Field{}, fmt.Errorf("invalid schema: list field %q must declare exactly one item type", path)
		}
		item, err := fieldFromNode("", node.Content[0], path+"[]")
		if err != nil {
			return Field{}, err
		}
		return Field{Name: name, Type: Array, Items: &item}, nil

	case yaml.MappingNode:
		if mappingValue(node, "type") == nil {
			nested, err := fieldsFromMapping(node, path)
			if err != nil {
				return Field{}, err
			}
			return Field{Name: name, Type: Object, Fields: nested}, nil
		}
		return fullField(name, node, path)

	default:
		return Field{}, fmt.Errorf("invalid schema: unsupported definition for %q", path)
	}
}

func fullField(name string, node *yaml.Node, path string) (Field, error) {
	typeNode := mappingValue(node, "type")
	f := shorthand(typeNode.Value)
	f.Name = name

	if d := mappingValue(node, "description"); d != nil {
		f.Description = d.Value
	}

	if props := mappingValue(node, "properties"); props != nil {
		if props.Kind != yaml.MappingNode {
			return Field{}, fmt.Errorf("invalid schema: properties of %q must be an object", path)
		}
		nested, err := fieldsFromMapping(props, path)
		if err != nil {
			return Field{}, err
		}
		f.Type = Object
		f.Fields = nested
	}

	if items := mappingValue(node, "items"); items != nil {
		item, err := fieldFromNode("", items, path+"[]")
		if err != nil {
			return Field{}, err
		}
		f.Type = Array
		f.Items = &item
	}

	if f.Type == Array && f.Items == nil {
		f.Items = &Field{Type: String}
	}
	return f, nil
}

// shorthand maps a type name to a field. Unknown names fall back to string.
func shorthand(name string) Field {
	n := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(n, "list[") && strings.HasSuffix(n, "]") {
		item := shorthand(n[len("list[") : len(n)-1])
		return Field{Type: Array, Items: &item}
	}

	switch n {
	case "str", "string", "text":
		return Field{Type: String}
	case "int", "integer":
		return Field{Type: Integer}
	case "float", "number", "double":
		return Field{Type: Number}
	case "bool", "boolean":
		return Field{Type: Boolean}
	case "list", "array":
		return Field{Type: Array, Items: &Field{Type: String}}
	case "dict", "object":
		return Field{Type: Object}
	default:
		slog.Debug("Unknown schema type, using string", "type", name)
		return Field{Type: String}
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.SequenceNode:
		return "a list"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an unknown node"
	}
}
