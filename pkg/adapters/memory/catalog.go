package memory

import "github.com/aretw0/flowdeck/pkg/domain"

// DefaultNodeTypes is the catalog served by the in-memory backend.
func DefaultNodeTypes() []domain.NodeTypeDefinition {
	return []domain.NodeTypeDefinition{
		{
			Type:        domain.NodeTypeChatInput,
			Label:       "CHAT INPUT",
			Description: "Receives a chat message and starts the workflow",
			Category:    domain.CategoryInputOutput,
			Icon:        "Input",
			Color:       "#ff5722",
			Inputs:      []domain.Port{{ID: "message", Name: "message", Type: "TEXT"}},
			Outputs:     []domain.Port{{ID: "output", Name: "output", Type: "TEXT"}},
		},
		{
			Type:        domain.NodeTypeLLM,
			Label:       "Language Model",
			Description: "Generates a response with a language model",
			Category:    domain.CategoryAIML,
			Icon:        "SmartToy",
			Color:       "#9c27b0",
			Inputs:      []domain.Port{{ID: "user_prompt", Name: "user_prompt", Type: "TEXT", Required: true}},
			Outputs:     []domain.Port{{ID: "response", Name: "response", Type: "TEXT"}},
		},
		{
			Type:        domain.NodeTypeParser,
			Label:       "Parser",
			Description: "Reshapes data and adds fields",
			Category:    domain.CategoryDataProcessing,
			Icon:        "Code",
			Color:       "#2196f3",
			Inputs:      []domain.Port{{ID: "data", Name: "data", Type: "JSON"}},
			Outputs:     []domain.Port{{ID: "output", Name: "output", Type: "JSON"}},
		},
		{
			Type:        domain.NodeTypeCondition,
			Label:       "If/Else",
			Description: "Routes data by comparing a value",
			Category:    domain.CategoryLogic,
			Icon:        "Condition",
			Color:       "#e65100",
			Inputs: []domain.Port{
				{ID: "condition", Name: "condition", Type: "TEXT"},
				{ID: "value", Name: "value", Type: "TEXT"},
			},
			Outputs: []domain.Port{
				{ID: "true", Name: "true", Type: "TEXT"},
				{ID: "false", Name: "false", Type: "TEXT"},
			},
		},
		{
			Type:        domain.NodeTypeChatOutput,
			Label:       "CHAT OUTPUT",
			Description: "Replies to the chat with its input",
			Category:    domain.CategoryInputOutput,
			Icon:        "Reply",
			Color:       "#4caf50",
			Inputs:      []domain.Port{{ID: "message", Name: "message", Type: "TEXT"}},
		},
	}
}
