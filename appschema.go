package schemaboi

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// AppSchema is a schema as an application writes it. Expand turns it into a
// Schema. It reads from YAML like this:
//
//	id: shapes
//	root: list<Shape>
//	types:
//	  - name: Shape
//	    variants:
//	      - Empty
//	      - name: Circle
//	        fields:
//	          - {name: radius, type: f32}
//	  - name: Point
//	    fields:
//	      - {name: x, type: s32}
//	      - {name: y, type: s32, default: 0}
type AppSchema struct {
	ID    string    `yaml:"id"`
	Root  string    `yaml:"root"`
	Types []AppType `yaml:"types"`
}

// AppType is a struct, or an enum when Enum is set or it has variants.
type AppType struct {
	Name string `yaml:"name"`

	Fields []AppField `yaml:"fields,omitempty"`

	Enum              bool         `yaml:"enum,omitempty"`
	Variants          []AppVariant `yaml:"variants,omitempty"`
	Closed            bool         `yaml:"closed,omitempty"`
	NumericOnly       *bool        `yaml:"numericOnly,omitempty"`
	TypeFieldOnParent string       `yaml:"typeFieldOnParent,omitempty"`
}

type AppField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	Default  any    `yaml:"default,omitempty"`
	Optional *bool  `yaml:"optional,omitempty"`
	Skip     bool   `yaml:"skip,omitempty"`
	RenameTo string `yaml:"renameTo,omitempty"`
	Inline   *bool  `yaml:"inline,omitempty"`

	// Encoding is "le" (or "fixed") or "varint" for integer types.
	Encoding string `yaml:"encoding,omitempty"`
	// BigInt decodes integers as *big.Int.
	BigInt bool `yaml:"bigint,omitempty"`
	// MapForm is "object", "entries" or "pairs".
	MapForm string `yaml:"mapForm,omitempty"`
}

// AppVariant is an enum variant. In YAML a bare name is a variant without
// fields.
type AppVariant struct {
	Name     string     `yaml:"name"`
	RenameTo string     `yaml:"renameTo,omitempty"`
	Fields   []AppField `yaml:"fields,omitempty"`
}

func (v *AppVariant) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*v = AppVariant{Name: node.Value}
		return nil
	}
	type plain AppVariant
	return node.Decode((*plain)(v))
}

// ParseAppSchema reads an AppSchema from YAML. Unknown keys are an error.
func ParseAppSchema(data []byte) (*AppSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var app AppSchema
	if err := dec.Decode(&app); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(ErrInvalidSchema, "empty schema document")
		}
		return nil, fmt.Errorf("schemaboi: parsing schema: %w", err)
	}
	return &app, nil
}

// LoadSchema parses and expands a YAML schema.
func LoadSchema(data []byte) (*Schema, error) {
	app, err := ParseAppSchema(data)
	if err != nil {
		return nil, err
	}
	return Expand(app)
}
