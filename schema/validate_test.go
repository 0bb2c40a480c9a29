package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/tinybase/schema"
)

func validationErrors(t *testing.T, err error) schema.ValidationErrors {
	t.Helper()
	require.Error(t, err)
	var errs schema.ValidationErrors
	require.ErrorAs(t, err, &errs)
	return errs
}

func TestValidateNilSchema(t *testing.T) {
	assert.NoError(t, schema.Validate(nil, map[string]any{"anything": "goes"}))
	assert.NoError(t, schema.Validate(nil, []any{1, 2, 3}))
}

func TestValidateRequired(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"title": {Type: schema.TypeString, Required: true},
	})

	assert.NoError(t, schema.Validate(s, map[string]any{"title": "Hello!"}))

	errs := validationErrors(t, schema.Validate(s, map[string]any{"wrong_field": "Hello!"}))
	assert.Equal(t, schema.ValidationErrors{
		{Kind: schema.MissingRequiredField, Field: "title"},
	}, errs)
}

func TestValidateOptionalAbsent(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"nickname": {Type: schema.TypeString, Default: "anon"},
	})

	doc := map[string]any{}
	assert.NoError(t, schema.Validate(s, doc))
	assert.NotContains(t, doc, "nickname", "defaults must not be applied")
}

func TestValidateUnknownFieldsPass(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"name": {Type: schema.TypeString, Required: true},
	})
	assert.NoError(t, schema.Validate(s, map[string]any{"name": "Bob", "extra": float64(1)}))
}

func TestValidateTypes(t *testing.T) {
	tests := []struct {
		name  string
		typ   schema.FieldType
		value any
		ok    bool
	}{
		{"string accepts string", schema.TypeString, "x", true},
		{"string rejects number", schema.TypeString, float64(1), false},
		{"text accepts string", schema.TypeText, "long text", true},
		{"text rejects boolean", schema.TypeText, true, false},
		{"number accepts float64", schema.TypeNumber, float64(1.5), true},
		{"number accepts json.Number", schema.TypeNumber, json.Number("42"), true},
		{"number accepts int", schema.TypeNumber, 7, true},
		{"number rejects string", schema.TypeNumber, "42", false},
		{"boolean accepts bool", schema.TypeBoolean, false, true},
		{"boolean rejects null", schema.TypeBoolean, nil, false},
		{"json accepts object", schema.TypeJSON, map[string]any{"a": "b"}, true},
		{"json accepts array", schema.TypeJSON, []any{"a"}, true},
		{"json rejects string", schema.TypeJSON, "{}", false},
		{"json rejects number", schema.TypeJSON, float64(0), false},
		{"json rejects null", schema.TypeJSON, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := schema.New(map[string]schema.FieldDefinition{"f": {Type: tc.typ}})
			err := schema.Validate(s, map[string]any{"f": tc.value})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			errs := validationErrors(t, err)
			require.Len(t, errs, 1)
			assert.Equal(t, schema.InvalidType, errs[0].Kind)
			assert.Equal(t, "f", errs[0].Field)
			assert.Equal(t, tc.typ.String(), errs[0].Expected)
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"title":  {Type: schema.TypeString, Required: true},
		"count":  {Type: schema.TypeNumber, Required: true},
		"active": {Type: schema.TypeBoolean},
		"tags":   {Type: schema.TypeJSON},
	})
	doc := map[string]any{
		"count":  "three",
		"active": "yes",
		"tags":   []any{"a"},
	}

	errs := validationErrors(t, schema.Validate(s, doc))
	assert.ElementsMatch(t, schema.ValidationErrors{
		{Kind: schema.MissingRequiredField, Field: "title"},
		{Kind: schema.InvalidType, Field: "count", Expected: "number", Actual: "string"},
		{Kind: schema.InvalidType, Field: "active", Expected: "boolean", Actual: "string"},
	}, errs)
}

func TestValidateDeterministic(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"a": {Type: schema.TypeString, Required: true},
		"b": {Type: schema.TypeNumber, Required: true},
		"c": {Type: schema.TypeBoolean, Required: true},
		"d": {Type: schema.TypeJSON, Required: true},
	})
	doc := map[string]any{"b": "x", "d": float64(1)}

	first := validationErrors(t, schema.Validate(s, doc))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, validationErrors(t, schema.Validate(s, doc)))
	}
}

func TestValidateNotAnObject(t *testing.T) {
	s := schema.New(map[string]schema.FieldDefinition{
		"title": {Type: schema.TypeString, Required: true},
		"count": {Type: schema.TypeNumber, Required: true},
	})

	docs := map[string]any{
		"array":  []any{"title"},
		"string": "title",
		"number": float64(3),
		"bool":   true,
		"null":   nil,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			errs := validationErrors(t, schema.Validate(s, doc))
			require.Len(t, errs, 1)
			assert.Equal(t, schema.InvalidType, errs[0].Kind)
			assert.Equal(t, schema.DocumentField, errs[0].Field)
			assert.Equal(t, "object", errs[0].Expected)
		})
	}
}

func TestValidationErrorMessages(t *testing.T) {
	err := schema.ValidationErrors{
		{Kind: schema.MissingRequiredField, Field: "title"},
		{Kind: schema.InvalidType, Field: "count", Expected: "number", Actual: "string"},
	}
	assert.Equal(t,
		`validation failed: missing required field: title; invalid type for field "count": expected number, got string`,
		err.Error(),
	)
}
