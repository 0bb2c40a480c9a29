// Package schema provides collection schemas and record validation.
package schema

import (
	"fmt"
	"sort"
)

// FieldType is the declared type of a schema field.
type FieldType int

const (
	TypeString FieldType = iota + 1
	TypeText
	TypeNumber
	TypeBoolean
	TypeJSON
)

var fieldTypeNames = map[FieldType]string{
	TypeString:  "string",
	TypeText:    "text",
	TypeNumber:  "number",
	TypeBoolean: "boolean",
	TypeJSON:    "json",
}

// ParseFieldType returns the FieldType for a lowercase type token.
func ParseFieldType(s string) (FieldType, error) {
	for t, name := range fieldTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q (supported: string, text, number, boolean, json)", s)
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	name, ok := fieldTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid field type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FieldDefinition describes one field of a schema.
//
// Default is stored with the schema but is not applied by Validate
// or by any store.
type FieldDefinition struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default"`
}

// Schema maps field names to their definitions.
type Schema struct {
	Fields map[string]FieldDefinition `json:"fields"`
}

// New returns a Schema with the given fields.
func New(fields map[string]FieldDefinition) *Schema {
	if fields == nil {
		fields = map[string]FieldDefinition{}
	}
	return &Schema{Fields: fields}
}

// Check reports the first malformed field definition, if any.
// A field without a type fails the check.
func (s *Schema) Check() error {
	if s == nil {
		return nil
	}
	for _, name := range s.FieldNames() {
		if name == "" {
			return fmt.Errorf("field with empty name")
		}
		if _, ok := fieldTypeNames[s.Fields[name].Type]; !ok {
			return fmt.Errorf("field %q: missing or invalid type", name)
		}
	}
	return nil
}

// FieldNames returns the declared field names in sorted order.
func (s *Schema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
