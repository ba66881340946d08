package task

import (
	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
)

// ChatFunction is the simplified function DSL exposed to pipeline authors:
// a named function with flat, typed parameters instead of a full JSON
// schema document.
type ChatFunction struct {
	Name        string                  `json:"name" mapstructure:"name"`
	Description string                  `json:"description" mapstructure:"description"`
	Parameters  []ChatFunctionParameter `json:"parameters" mapstructure:"parameters"`
}

type ChatFunctionParameter struct {
	Name        string   `json:"name" mapstructure:"name"`
	Description string   `json:"description" mapstructure:"description"`
	// Type is an OpenAPI primitive: string, number, integer, boolean,
	// array, object.
	Type       string   `json:"type" mapstructure:"type"`
	Required   bool     `json:"required" mapstructure:"required"`
	EnumValues []string `json:"enumValues" mapstructure:"enumValues"`
}

// parameterSchema and objectSchema are the typed JSON-schema fragments the
// DSL translates into. Properties and Required always serialize, even when
// empty; Enum is omitted entirely when no values are constrained.
type parameterSchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type objectSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]parameterSchema `json:"properties"`
	Required   []string                   `json:"required"`
}

// buildFunctionDefinition translates one DSL function into the API's
// function-definition shape. A parameter missing its name or type fails
// fast; no partial function is registered.
func buildFunctionDefinition(fn *ChatFunction) (openai.FunctionDefinition, error) {
	if fn.Name == "" {
		return openai.FunctionDefinition{}, core.NewEvalError(nil, "function requires a name")
	}
	properties := make(map[string]parameterSchema, len(fn.Parameters))
	required := make([]string, 0, len(fn.Parameters))
	for _, param := range fn.Parameters {
		if param.Name == "" || param.Type == "" {
			return openai.FunctionDefinition{}, core.NewEvalError(nil,
				"function %q: every parameter requires a name and a type", fn.Name)
		}
		schema := parameterSchema{
			Type:        param.Type,
			Description: param.Description,
		}
		if len(param.EnumValues) > 0 {
			schema.Enum = param.EnumValues
		}
		properties[param.Name] = schema
		if param.Required {
			required = append(required, param.Name)
		}
	}
	return openai.FunctionDefinition{
		Name:        fn.Name,
		Description: fn.Description,
		Parameters: objectSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}, nil
}

// buildChatTools wraps each DSL function into a tool definition and returns
// the set of registered names for tool-choice validation.
func buildChatTools(functions []ChatFunction) ([]openai.ChatTool, map[string]bool, error) {
	if len(functions) == 0 {
		return nil, nil, nil
	}
	tools := make([]openai.ChatTool, 0, len(functions))
	names := make(map[string]bool, len(functions))
	for i := range functions {
		def, err := buildFunctionDefinition(&functions[i])
		if err != nil {
			return nil, nil, err
		}
		tools = append(tools, openai.ChatTool{Type: "function", Function: def})
		names[def.Name] = true
	}
	return tools, names, nil
}
