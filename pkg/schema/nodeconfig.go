package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidJSON is the cause reported for structured config text that does not parse.
var ErrInvalidJSON = errors.New("Invalid JSON format")

// DefaultProvider is assumed for language-model nodes that have no provider yet.
const DefaultProvider = "openai"

var providerModels = map[string][]string{
	"openai":    {"gpt-4.1", "gpt-4.2", "gpt-4.3"},
	"anthropic": {"claude-3.7-sonnet", "claude-3.7-sonnet-20250219"},
	"google":    {"gemini-2.0-flash", "gemini-2.0-flash-lite"},
	"meta":      {"llama-3.1-8b", "llama-3.1-8b-instant"},
}

// Providers returns the known model providers, sorted.
func Providers() []string {
	out := make([]string, 0, len(providerModels))
	for p := range providerModels {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ModelsFor returns the models offered for a provider. Unknown providers have none.
func ModelsFor(provider string) []string {
	return append([]string(nil), providerModels[provider]...)
}

// Condition operators, by name and by symbol.
var conditionOperators = []string{
	"equal", "not_equal", "greater_than", "less_than", "greater_equal", "less_equal",
	"==", "!=", ">", "<", ">=", "<=",
}

var operatorSymbols = map[string]string{
	"==": "equal", "!=": "not_equal", ">": "greater_than",
	"<": "less_than", ">=": "greater_equal", "<=": "less_equal",
}

// Output formats for chat output nodes.
var chatOutputFormats = []string{"text", "markdown", "json"}

// LLMConfig is the typed config of a language-model node.
type LLMConfig struct {
	Provider     string         `mapstructure:"provider"`
	ModelName    string         `mapstructure:"model_name"`
	APIKey       string         `mapstructure:"api_key"`
	SystemPrompt string         `mapstructure:"system_prompt"`
	UserPrompt   string         `mapstructure:"user_prompt"`
	Extra        map[string]any `mapstructure:",remain"`
}

// ConditionConfig is the typed config of an if/else node.
type ConditionConfig struct {
	Operator     string         `mapstructure:"operator"`
	CompareValue any            `mapstructure:"compare_value"`
	Extra        map[string]any `mapstructure:",remain"`
}

// CanonicalOperator returns the named form of the operator ("==" becomes "equal").
func (c ConditionConfig) CanonicalOperator() string {
	if named, ok := operatorSymbols[c.Operator]; ok {
		return named
	}
	return c.Operator
}

// ParserConfig is the typed config of a parser node.
type ParserConfig struct {
	FieldsToAdd map[string]string `mapstructure:"fields_to_add"`
	Extra       map[string]any    `mapstructure:",remain"`
}

// ChatOutputConfig is the typed config of a chat output node.
type ChatOutputConfig struct {
	Format string         `mapstructure:"format"`
	Extra  map[string]any `mapstructure:",remain"`
}

// OpaqueConfig holds the config of node types without a typed schema.
type OpaqueConfig struct {
	Values map[string]any
}

var nodeSchemas = map[string]Schema{
	domain.NodeTypeLLM: {
		"provider":      Optional(Enum(Providers()...)),
		"model_name":    Optional(String()),
		"api_key":       Optional(String()),
		"system_prompt": Optional(String()),
		"user_prompt":   Optional(String()),
	},
	domain.NodeTypeCondition: {
		"operator":      Optional(Enum(conditionOperators...)),
		"compare_value": Optional(Any()),
	},
	domain.NodeTypeParser: {
		domain.ConfigKeyFieldsToAdd: Optional(Map(String())),
	},
	domain.NodeTypeChatOutput: {
		"format": Optional(Enum(chatOutputFormats...)),
	},
}

// ForNodeType returns the config schema of a node type. Types without one get nil.
func ForNodeType(nodeType string) Schema {
	return nodeSchemas[nodeType]
}

// StructuredFields lists config fields edited as JSON text for a node type.
func StructuredFields(nodeType string) []string {
	switch nodeType {
	case domain.NodeTypeCondition:
		return []string{"compare_value"}
	case domain.NodeTypeParser:
		return []string{domain.ConfigKeyFieldsToAdd}
	}
	return nil
}

// Decode converts a node config mapping into the typed config for its node type.
// The result is one of *LLMConfig, *ConditionConfig, *ParserConfig, *ChatOutputConfig
// or *OpaqueConfig.
func Decode(nodeType string, config map[string]any) (any, error) {
	var target any
	switch nodeType {
	case domain.NodeTypeLLM:
		target = &LLMConfig{}
	case domain.NodeTypeCondition:
		target = &ConditionConfig{}
	case domain.NodeTypeParser:
		target = &ParserConfig{}
	case domain.NodeTypeChatOutput:
		target = &ChatOutputConfig{}
	default:
		return &OpaqueConfig{Values: domain.CloneConfig(config)}, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", nodeType, err)
	}

	if llm, ok := target.(*LLMConfig); ok && llm.Provider == "" {
		llm.Provider = DefaultProvider
	}
	return target, nil
}

// ValidateConfig checks a node config against its type's schema and cross-field rules.
// A model_name must belong to the selected provider; an empty model_name is allowed
// because changing the provider clears it.
func ValidateConfig(nodeType string, config map[string]any) error {
	var errs []error
	if err := Validate(ForNodeType(nodeType), config); err != nil {
		errs = append(errs, ValidationErrors(err)...)
	}

	if nodeType == domain.NodeTypeLLM && len(errs) == 0 {
		decoded, err := Decode(nodeType, config)
		if err != nil {
			return err
		}
		llm := decoded.(*LLMConfig)
		if llm.ModelName != "" && !contains(ModelsFor(llm.Provider), llm.ModelName) {
			errs = append(errs, &ValidationError{
				Key:    domain.ConfigKeyModelName,
				Reason: fmt.Sprintf("model not offered by provider %q", llm.Provider),
				Value:  llm.ModelName,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ParseFieldValue parses the text of a structured config field.
func ParseFieldValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return v, nil
}

// FieldsToAdd builds the fields_to_add mapping from key/value rows.
// Rows with an empty key or value are skipped.
func FieldsToAdd(rows [][2]string) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if row[0] == "" || row[1] == "" {
			continue
		}
		out[row[0]] = row[1]
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
