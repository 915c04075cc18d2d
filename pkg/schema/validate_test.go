package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiredAndOptional(t *testing.T) {
	s := Schema{
		"operator":      String(),
		"compare_value": Optional(Any()),
	}

	assert.NoError(t, Validate(s, map[string]any{"operator": "equal"}))

	err := Validate(s, map[string]any{})
	require.Error(t, err)
	errs := ValidationErrors(err)
	require.Len(t, errs, 1)
	var ve *ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, "operator", ve.Key)
	assert.Equal(t, "required", ve.Reason)
}

func TestValidate_MultipleErrorsSorted(t *testing.T) {
	s := Schema{
		"b": Int(),
		"a": String(),
	}

	err := Validate(s, map[string]any{"a": 1, "b": "x"})
	errs := ValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), `field "a"`)
	assert.Contains(t, errs[1].Error(), `field "b"`)
}

func TestValidate_EmptySchema(t *testing.T) {
	assert.NoError(t, Validate(nil, map[string]any{"anything": 1}))
	assert.NoError(t, Validate(Schema{}, nil))
}

func TestValidateFields(t *testing.T) {
	s := ForNodeType(domain.NodeTypeLLM)

	assert.NoError(t, ValidateFields(s, map[string]any{"provider": "google"}, "provider"))
	assert.NoError(t, ValidateFields(s, map[string]any{"temperature": "hot"}, "temperature"), "undeclared fields pass")

	err := ValidateFields(s, map[string]any{"provider": "acme"}, "provider")
	assert.Contains(t, FieldErrors(err), "provider")
}

func TestAggregateError_String(t *testing.T) {
	single := &AggregateError{Errors: []error{&ValidationError{Key: "a", Reason: "required"}}}
	assert.Equal(t, `field "a": required`, single.Error())

	multi := &AggregateError{Errors: []error{
		&ValidationError{Key: "a", Reason: "required"},
		&ValidationError{Key: "b", Reason: "bad", Value: 1},
	}}
	assert.Contains(t, multi.Error(), "2 validation errors")
	assert.Contains(t, multi.Error(), "(got int)")
}

func TestValidationErrors_Wrapped(t *testing.T) {
	inner := &AggregateError{Errors: []error{errors.New("x")}}
	wrapped := fmt.Errorf("node 3: %w", inner)

	assert.Len(t, ValidationErrors(wrapped), 1)
	assert.Nil(t, ValidationErrors(errors.New("plain")))
}
