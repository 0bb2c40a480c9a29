package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorKind classifies a ValidationError.
type ErrorKind string

const (
	MissingRequiredField ErrorKind = "missing_required_field"
	InvalidType          ErrorKind = "invalid_type"
)

// DocumentField is the pseudo-field reported when the document itself
// is not a JSON object.
const DocumentField = "data"

// ValidationError is a single schema violation.
type ValidationError struct {
	Kind     ErrorKind `json:"kind"`
	Field    string    `json:"field"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case MissingRequiredField:
		return fmt.Sprintf("missing required field: %s", e.Field)
	case InvalidType:
		return fmt.Sprintf("invalid type for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
}

// ValidationErrors is the complete list of violations found in one document.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks a decoded JSON document against a schema.
// Returns nil if the document passes or the schema is nil,
// otherwise a ValidationErrors holding every violation.
//
// Fields not declared in the schema are ignored.
func Validate(s *Schema, doc any) error {
	if s == nil {
		return nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return ValidationErrors{{
			Kind:     InvalidType,
			Field:    DocumentField,
			Expected: "object",
			Actual:   jsonType(doc),
		}}
	}

	var errs ValidationErrors
	for _, name := range s.FieldNames() {
		def := s.Fields[name]
		val, exists := obj[name]
		if !exists {
			if def.Required {
				errs = append(errs, ValidationError{Kind: MissingRequiredField, Field: name})
			}
			continue
		}
		if !compatible(def.Type, val) {
			errs = append(errs, ValidationError{
				Kind:     InvalidType,
				Field:    name,
				Expected: def.Type.String(),
				Actual:   jsonType(val),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func compatible(t FieldType, v any) bool {
	actual := jsonType(v)
	switch t {
	case TypeString, TypeText:
		return actual == "string"
	case TypeNumber:
		return actual == "number"
	case TypeBoolean:
		return actual == "boolean"
	case TypeJSON:
		return actual == "object" || actual == "array"
	default:
		return false
	}
}

// jsonType names the JSON type of a decoded value.
func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
