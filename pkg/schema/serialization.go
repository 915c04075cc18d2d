package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalJSON encodes the schema as field names mapped to type strings,
// e.g. {"provider": "enum(openai|anthropic)?"}.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typeMap := make(map[string]string, len(raw))
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string type, got %T", key, value)
		}
		typeMap[key] = str
	}

	parsed, err := ParseTypeMap(typeMap)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Describe renders the fields as "name type" pairs ordered by name.
func (s Schema) Describe() string {
	parts := make([]string, 0, len(s))
	for _, key := range sortedKeys(s) {
		parts = append(parts, key+" "+s[key].Name())
	}
	return strings.Join(parts, ", ")
}
