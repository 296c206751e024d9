package samples

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metafirst/supervisor/internal/rdmp"
)

func TestValidateFieldValueNumber(t *testing.T) {
	field := rdmp.Field{Key: "weight_mg", Type: rdmp.FieldTypeNumber}

	cases := []struct {
		name  string
		value any
		valid bool
	}{
		{"float", 12.5, true},
		{"int", 12, true},
		{"numeric string", "12.5", true},
		{"json number", json.Number("42"), true},
		{"word", "heavy", false},
		{"bool", true, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		valid, reason := ValidateFieldValue(field, tc.value)
		if valid != tc.valid {
			t.Fatalf("%s: valid=%v reason=%q", tc.name, valid, reason)
		}
		if !tc.valid && reason != "Value must be a number" {
			t.Fatalf("%s: unexpected reason %q", tc.name, reason)
		}
	}
}

func TestValidateFieldValueCategorical(t *testing.T) {
	field := rdmp.Field{Key: "tissue", Type: rdmp.FieldTypeCategorical, AllowedValues: []string{"liver", "brain"}}

	valid, _ := ValidateFieldValue(field, "liver")
	assert.True(t, valid)

	valid, reason := ValidateFieldValue(field, "kidney")
	assert.False(t, valid)
	assert.Equal(t, "Value must be one of: liver, brain", reason)

	valid, _ = ValidateFieldValue(field, 3)
	assert.False(t, valid)
}

func TestValidateFieldValueDate(t *testing.T) {
	field := rdmp.Field{Key: "collection_date", Type: rdmp.FieldTypeDate}

	valid, _ := ValidateFieldValue(field, "2026-03-01")
	assert.True(t, valid)

	valid, reason := ValidateFieldValue(field, 20260301)
	assert.False(t, valid)
	assert.Equal(t, "Date must be a string", reason)
}

func TestValidateFieldValueStringAcceptsAnything(t *testing.T) {
	field := rdmp.Field{Key: "organism", Type: rdmp.FieldTypeString}
	valid, _ := ValidateFieldValue(field, 42)
	assert.True(t, valid)
}

func TestCheckCompleteness(t *testing.T) {
	body := rdmp.Body{Fields: []rdmp.Field{
		{Key: "organism", Required: true},
		{Key: "tissue", Required: true},
		{Key: "collection_date", Required: true},
		{Key: "weight_mg", Required: false},
	}}
	values := []FieldValue{
		{FieldKey: "organism", Value: "mouse"},
		{FieldKey: "weight_mg", Value: 12.5},
	}

	result := CheckCompleteness(values, body)
	assert.False(t, result.IsComplete)
	assert.Equal(t, []string{"tissue", "collection_date"}, result.MissingFields)
	assert.Equal(t, 3, result.TotalRequired)
	assert.Equal(t, 2, result.TotalFilled)
}

func TestCheckCompletenessNoRequiredFields(t *testing.T) {
	body := rdmp.Body{Fields: []rdmp.Field{{Key: "notes", Required: false}}}
	result := CheckCompleteness(nil, body)
	assert.True(t, result.IsComplete)
	assert.Empty(t, result.MissingFields)
	assert.Zero(t, result.TotalRequired)
}
