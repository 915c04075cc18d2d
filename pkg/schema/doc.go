// Package schema validates node configuration mappings.
//
// It defines a small type system (string, int, float, bool, any, slices, mappings, enums)
// and per-node-type schemas for the configs the editor lets users change:
//
//	err := schema.ValidateConfig(domain.NodeTypeLLM, map[string]any{
//	    "provider":   "anthropic",
//	    "model_name": "claude-3.7-sonnet",
//	})
//
// Configs stay open mappings on the wire. Decode turns one into a typed value
// (LLMConfig, ConditionConfig, ParserConfig, ChatOutputConfig) with unknown keys kept in Extra:
//
//	cfg, _ := schema.Decode(domain.NodeTypeLLM, node.Config)
//	llm := cfg.(*schema.LLMConfig)
//
// Schemas can also be parsed from type strings, which is how they are published to tools:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "provider":      "enum(openai|anthropic)?",
//	    "fields_to_add": "{string}?",
//	})
package schema
