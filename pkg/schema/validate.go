package schema

import "sort"

// Schema is a map of field names to their expected types.
// Example: {"provider": Optional(Enum("openai", "anthropic")), "user_prompt": Optional(String())}
type Schema map[string]Type

// Validate checks if data conforms to the schema.
// Fields missing from data are errors unless their type is Optional.
// Fields not declared by the schema are ignored. Errors are ordered by field name.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for _, fieldName := range sortedKeys(schema) {
		fieldType := schema[fieldName]
		value, exists := data[fieldName]
		if !exists {
			if IsOptional(fieldType) {
				continue
			}
			errs = append(errs, &ValidationError{Key: fieldName, Reason: "required"})
			continue
		}
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: fieldName, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateFields validates only specific fields from data against the schema.
// Fields not declared by the schema pass: node configs are open mappings.
func ValidateFields(schema Schema, data map[string]any, fields ...string) error {
	var errs []error
	for _, fieldName := range fields {
		fieldType, declared := schema[fieldName]
		if !declared {
			continue
		}
		value, exists := data[fieldName]
		if !exists {
			if !IsOptional(fieldType) {
				errs = append(errs, &ValidationError{Key: fieldName, Reason: "required"})
			}
			continue
		}
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: fieldName, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func sortedKeys(s Schema) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
