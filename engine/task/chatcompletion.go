package task

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// ChatCompletion asks an LLM for a completion through the Chat Completions
// API. Either `messages` or `prompt` must be set; a prompt is appended as a
// user-role message.
type ChatCompletion struct {
	BaseTask `json:",inline" yaml:",inline"`

	// Model is the model ID, e.g. "gpt-4o". Required.
	Model any `json:"model" yaml:"model"`
	// Messages is the conversation so far: a list of {role, content, name}
	// objects or a JSON-array-shaped string.
	Messages any `json:"messages,omitempty" yaml:"messages,omitempty"`
	// Functions the API may generate calls for, in the flattened parameter
	// DSL.
	Functions any `json:"functions,omitempty" yaml:"functions,omitempty"`
	// FunctionCall selects the tool choice: "auto" (default), "none", or
	// the name of a declared function.
	FunctionCall any `json:"functionCall,omitempty" yaml:"functionCall,omitempty"`
	// Prompt is sent as a user-role message when set.
	Prompt           any `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Temperature      any `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             any `json:"topP,omitempty" yaml:"topP,omitempty"`
	N                any `json:"n,omitempty" yaml:"n,omitempty"`
	Stop             any `json:"stop,omitempty" yaml:"stop,omitempty"`
	MaxTokens        any `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	PresencePenalty  any `json:"presencePenalty,omitempty" yaml:"presencePenalty,omitempty"`
	FrequencyPenalty any `json:"frequencyPenalty,omitempty" yaml:"frequencyPenalty,omitempty"`
	LogitBias        any `json:"logitBias,omitempty" yaml:"logitBias,omitempty"`
	// JSONResponseSchema switches the response format to structured
	// JSON-schema output when set.
	JSONResponseSchema any `json:"jsonResponseSchema,omitempty" yaml:"jsonResponseSchema,omitempty"`
}

type ChatCompletionOutput struct {
	ID      string              `json:"id"`
	Object  string              `json:"object,omitempty"`
	Model   string              `json:"model"`
	Choices []openai.ChatChoice `json:"choices"`
	Usage   *openai.Usage       `json:"usage,omitempty"`
}

// chatCompletionConfig is the fully resolved, concrete configuration
// consumed by request assembly.
type chatCompletionConfig struct {
	Model            string `validate:"required"`
	Messages         []openai.ChatMessage
	Tools            []openai.ChatTool
	ToolChoice       any
	Temperature      *float64
	TopP             *float64
	N                int
	Stop             []string
	MaxTokens        *int64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	LogitBias        map[string]int
	ResponseSchema   map[string]any
	User             string
}

func (t *ChatCompletion) Run(ctx context.Context, rc *runner.Context) (*ChatCompletionOutput, error) {
	if t.Messages == nil && t.Prompt == nil {
		return nil, core.NewArgumentError("either `messages` or `prompt` must be set")
	}
	client, err := t.client(rc)
	if err != nil {
		return nil, err
	}
	cfg, err := t.resolve(rc)
	if err != nil {
		return nil, err
	}
	req := &openai.ChatRequest{
		Model:               cfg.Model,
		Messages:            cfg.Messages,
		Tools:               cfg.Tools,
		ToolChoice:          cfg.ToolChoice,
		Temperature:         cfg.Temperature,
		TopP:                cfg.TopP,
		N:                   &cfg.N,
		Stop:                cfg.Stop,
		MaxCompletionTokens: cfg.MaxTokens,
		PresencePenalty:     cfg.PresencePenalty,
		FrequencyPenalty:    cfg.FrequencyPenalty,
		LogitBias:           cfg.LogitBias,
		User:                cfg.User,
	}
	if cfg.ResponseSchema != nil {
		req.ResponseFormat = &openai.ResponseFormat{Type: "json_schema", JSONSchema: cfg.ResponseSchema}
	}
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		rc.Metric("usage.prompt.tokens", resp.Usage.PromptTokens)
		rc.Metric("usage.completion.tokens", resp.Usage.CompletionTokens)
		rc.Metric("usage.total.tokens", resp.Usage.TotalTokens)
	}
	return &ChatCompletionOutput{
		ID:      resp.ID,
		Object:  resp.Object,
		Model:   resp.Model,
		Choices: resp.Choices,
		Usage:   resp.Usage,
	}, nil
}

func (t *ChatCompletion) resolve(rc *runner.Context) (*chatCompletionConfig, error) {
	cfg := &chatCompletionConfig{N: 1}
	var err error
	if cfg.Model, err = renderAsString(rc, t.Model); err != nil {
		return nil, err
	}
	if cfg.User, err = t.renderUser(rc); err != nil {
		return nil, err
	}
	if cfg.Messages, err = t.resolveMessages(rc); err != nil {
		return nil, err
	}
	if err = t.resolveTools(rc, cfg); err != nil {
		return nil, err
	}
	if err = t.resolveSampling(rc, cfg); err != nil {
		return nil, err
	}
	if err = validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (t *ChatCompletion) resolveMessages(rc *runner.Context) ([]openai.ChatMessage, error) {
	var messages []openai.ChatMessage
	if t.Messages != nil {
		rendered, err := rc.RenderAny(t.Messages)
		if err != nil {
			return nil, err
		}
		list, err := chatMessageList(rendered)
		if err != nil {
			return nil, err
		}
		messages = list
	}
	if t.Prompt != nil {
		prompt, err := renderAsString(rc, t.Prompt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, openai.ChatMessage{Role: openai.RoleUser, Content: prompt})
	}
	return messages, nil
}

func chatMessageList(rendered any) ([]openai.ChatMessage, error) {
	var raw []any
	switch v := rendered.(type) {
	case string:
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &raw); err != nil {
			return nil, core.NewEvalError(err, "failed to parse `messages` as a message list")
		}
	case []any:
		raw = v
	default:
		return nil, core.NewArgumentError("`messages` must be a list of messages, got %T", rendered)
	}
	messages := make([]openai.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var spec struct {
			Role    string `mapstructure:"role"`
			Content string `mapstructure:"content"`
			Name    string `mapstructure:"name"`
		}
		if err := decodeSpec(item, &spec); err != nil {
			return nil, err
		}
		messages = append(messages, openai.ChatMessage{
			Role:    normalizeRole(spec.Role),
			Content: spec.Content,
			Name:    spec.Name,
		})
	}
	return messages, nil
}

func (t *ChatCompletion) resolveTools(rc *runner.Context, cfg *chatCompletionConfig) error {
	var functions []ChatFunction
	if t.Functions != nil {
		rendered, err := rc.RenderAny(t.Functions)
		if err != nil {
			return err
		}
		if err := decodeSpec(rendered, &functions); err != nil {
			return err
		}
	}
	tools, names, err := buildChatTools(functions)
	if err != nil {
		return err
	}
	cfg.Tools = tools

	functionCall := ""
	if t.FunctionCall != nil {
		if functionCall, err = renderAsString(rc, t.FunctionCall); err != nil {
			return err
		}
	}
	choice, err := resolveToolChoice(functionCall, names)
	if err != nil {
		return err
	}
	cfg.ToolChoice = choice
	return nil
}

// resolveToolChoice applies the tool-choice branching rules: "auto" and
// "none" are directives, anything else must name a declared function.
func resolveToolChoice(functionCall string, toolNames map[string]bool) (any, error) {
	switch functionCall {
	case "", openai.ToolChoiceAuto:
		if len(toolNames) == 0 {
			return nil, nil
		}
		return openai.ToolChoiceAuto, nil
	case openai.ToolChoiceNone:
		if len(toolNames) == 0 {
			return nil, nil
		}
		return openai.ToolChoiceNone, nil
	default:
		if len(toolNames) == 0 {
			return nil, core.NewArgumentError(
				"cannot specify a function name (%q) in `functionCall` when no functions are provided", functionCall)
		}
		if !toolNames[functionCall] {
			return nil, core.NewArgumentError("function %q is not provided in functions list", functionCall)
		}
		return openai.NamedToolChoice{
			Type:     "function",
			Function: openai.NamedToolChoiceFunction{Name: functionCall},
		}, nil
	}
}

func (t *ChatCompletion) resolveSampling(rc *runner.Context, cfg *chatCompletionConfig) error {
	var err error
	if cfg.Temperature, err = renderOptionalFloat(rc, t.Temperature); err != nil {
		return err
	}
	if cfg.TopP, err = renderOptionalFloat(rc, t.TopP); err != nil {
		return err
	}
	if cfg.PresencePenalty, err = renderOptionalFloat(rc, t.PresencePenalty); err != nil {
		return err
	}
	if cfg.FrequencyPenalty, err = renderOptionalFloat(rc, t.FrequencyPenalty); err != nil {
		return err
	}
	if t.N != nil {
		if cfg.N, err = rc.RenderInt(t.N); err != nil {
			return err
		}
	}
	if t.Stop != nil {
		if cfg.Stop, err = rc.RenderStringSlice(t.Stop); err != nil {
			return err
		}
	}
	if t.MaxTokens != nil {
		maxTokens, err := rc.RenderInt64(t.MaxTokens)
		if err != nil {
			return err
		}
		cfg.MaxTokens = &maxTokens
	}
	if t.LogitBias != nil {
		bias, err := rc.RenderIntMap(t.LogitBias)
		if err != nil {
			return err
		}
		if len(bias) > 0 {
			cfg.LogitBias = bias
		}
	}
	if t.JSONResponseSchema != nil {
		if cfg.ResponseSchema, err = rc.RenderMap(t.JSONResponseSchema); err != nil {
			return err
		}
	}
	return nil
}

func renderAsString(rc *runner.Context, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	if s, ok := value.(string); ok {
		return rc.RenderString(s)
	}
	rendered, err := rc.RenderAny(value)
	if err != nil {
		return "", err
	}
	s, ok := rendered.(string)
	if !ok {
		return "", core.NewArgumentError("expected a string value, got %T", rendered)
	}
	return s, nil
}

func renderOptionalFloat(rc *runner.Context, value any) (*float64, error) {
	if value == nil {
		return nil, nil
	}
	out, err := rc.RenderFloat(value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
