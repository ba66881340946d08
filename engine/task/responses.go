package task

import (
	"context"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// Responses calls the Responses API: multi-modal input, built-in tools,
// structured output, and server-side conversation continuation via a
// previous response ID persisted by the host.
type Responses struct {
	BaseTask `json:",inline" yaml:",inline"`

	// Model is the model ID. Required.
	Model any `json:"model" yaml:"model"`
	// Input is the conversation payload: a string, a JSON-array-shaped
	// string, or a structured list of messages with content parts. Required.
	Input any `json:"input" yaml:"input"`
	// Text configures text output, e.g. json_schema structured responses.
	Text any `json:"text,omitempty" yaml:"text,omitempty"`
	// Tools enabled for this call (function, web_search_preview,
	// file_search, ...).
	Tools any `json:"tools,omitempty" yaml:"tools,omitempty"`
	// ToolChoice is none, auto (default), or required.
	ToolChoice any `json:"toolChoice,omitempty" yaml:"toolChoice,omitempty"`
	// Store keeps the conversation on the API side. Defaults to true.
	Store any `json:"store,omitempty" yaml:"store,omitempty"`
	// PreviousResponseID continues a stored conversation.
	PreviousResponseID any `json:"previousResponseId,omitempty" yaml:"previousResponseId,omitempty"`
	// Reasoning is an optional reasoning options map.
	Reasoning         any `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	MaxOutputTokens   any `json:"maxOutputTokens,omitempty" yaml:"maxOutputTokens,omitempty"`
	Temperature       any `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP              any `json:"topP,omitempty" yaml:"topP,omitempty"`
	ParallelToolCalls any `json:"parallelToolCalls,omitempty" yaml:"parallelToolCalls,omitempty"`
}

type ResponsesOutput struct {
	ResponseID string `json:"responseId"`
	// OutputText is the flattened text of all output items.
	OutputText string `json:"outputText"`
	// Sources are URLs collected from url_citation annotations.
	Sources []string `json:"sources,omitempty"`
	// RawResponse is the full response as a generic map for downstream
	// inspection.
	RawResponse core.Output `json:"rawResponse,omitempty"`
}

type responsesConfig struct {
	Model              string `validate:"required"`
	Input              []openai.InputMessage
	ToolChoice         string
	Tools              []openai.ResponseTool
	Store              bool
	PreviousResponseID string
	Reasoning          *openai.Reasoning
	Text               *openai.TextConfig
	MaxOutputTokens    *int
	Temperature        float64
	TopP               float64
	ParallelToolCalls  *bool
	User               string
}

func (t *Responses) Run(ctx context.Context, rc *runner.Context) (*ResponsesOutput, error) {
	if t.Input == nil {
		return nil, core.NewArgumentError("`input` must be set")
	}
	client, err := t.client(rc)
	if err != nil {
		return nil, err
	}
	cfg, err := t.resolve(ctx, rc)
	if err != nil {
		return nil, err
	}
	store := cfg.Store
	req := &openai.ResponseRequest{
		Model:              cfg.Model,
		Input:              cfg.Input,
		Store:              &store,
		PreviousResponseID: cfg.PreviousResponseID,
		Reasoning:          cfg.Reasoning,
		Text:               cfg.Text,
		Tools:              cfg.Tools,
		ToolChoice:         cfg.ToolChoice,
		ParallelToolCalls:  cfg.ParallelToolCalls,
		Temperature:        &cfg.Temperature,
		TopP:               &cfg.TopP,
		MaxOutputTokens:    cfg.MaxOutputTokens,
		User:               cfg.User,
	}
	resp, err := client.CreateResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		rc.Metric("usage.prompt.tokens", resp.Usage.InputTokens)
		rc.Metric("usage.completion.tokens", resp.Usage.OutputTokens)
		rc.Metric("usage.total.tokens", resp.Usage.TotalTokens)
	}
	raw, err := core.AsMap(resp)
	if err != nil {
		return nil, err
	}
	return &ResponsesOutput{
		ResponseID:  resp.ID,
		OutputText:  extractOutputText(resp.Output),
		Sources:     extractSources(resp.Output),
		RawResponse: raw,
	}, nil
}

func (t *Responses) resolve(ctx context.Context, rc *runner.Context) (*responsesConfig, error) {
	cfg := &responsesConfig{Store: true, Temperature: 1.0, TopP: 1.0}
	var err error
	if cfg.Model, err = renderAsString(rc, t.Model); err != nil {
		return nil, err
	}
	if cfg.User, err = t.renderUser(rc); err != nil {
		return nil, err
	}
	renderedInput, err := rc.RenderAny(t.Input)
	if err != nil {
		return nil, err
	}
	if cfg.Input, err = normalizeInput(ctx, rc, renderedInput); err != nil {
		return nil, err
	}
	if len(cfg.Input) == 0 {
		return nil, core.NewArgumentError("`input` must be set")
	}
	if cfg.ToolChoice, err = t.resolveToolChoice(rc); err != nil {
		return nil, err
	}
	if cfg.Tools, err = t.resolveTools(rc); err != nil {
		return nil, err
	}
	if err = t.resolveOptions(rc, cfg); err != nil {
		return nil, err
	}
	if err = validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveToolChoice maps the three-valued enum, defaulting to auto.
func (t *Responses) resolveToolChoice(rc *runner.Context) (string, error) {
	if t.ToolChoice == nil {
		return "auto", nil
	}
	rendered, err := renderAsString(rc, t.ToolChoice)
	if err != nil {
		return "", err
	}
	choice := normalizeEnum(rendered)
	switch choice {
	case "":
		return "auto", nil
	case "none", "auto", "required":
		return choice, nil
	default:
		return "", core.NewArgumentError("`toolChoice` must be none, auto, or required, got %q", rendered)
	}
}

func (t *Responses) resolveTools(rc *runner.Context) ([]openai.ResponseTool, error) {
	if t.Tools == nil {
		return nil, nil
	}
	rendered, err := rc.RenderAny(t.Tools)
	if err != nil {
		return nil, err
	}
	list, ok := rendered.([]any)
	if !ok {
		return nil, core.NewArgumentError("`tools` must be a list of tool objects, got %T", rendered)
	}
	tools := make([]openai.ResponseTool, 0, len(list))
	for _, item := range list {
		var tool openai.ResponseTool
		if err := decodeSpec(item, &tool); err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func (t *Responses) resolveOptions(rc *runner.Context, cfg *responsesConfig) error {
	var err error
	if t.Store != nil {
		if cfg.Store, err = rc.RenderBool(t.Store); err != nil {
			return err
		}
	}
	if t.PreviousResponseID != nil {
		if cfg.PreviousResponseID, err = renderAsString(rc, t.PreviousResponseID); err != nil {
			return err
		}
	}
	if t.Reasoning != nil {
		reasoningMap, err := rc.RenderStringMap(t.Reasoning)
		if err != nil {
			return err
		}
		if len(reasoningMap) > 0 {
			reasoning := &openai.Reasoning{}
			if err := decodeSpec(reasoningMap, reasoning); err != nil {
				return err
			}
			cfg.Reasoning = reasoning
		}
	}
	if t.Text != nil {
		textMap, err := rc.RenderMap(t.Text)
		if err != nil {
			return err
		}
		if len(textMap) > 0 {
			text := &openai.TextConfig{}
			if err := decodeSpec(textMap, text); err != nil {
				return err
			}
			cfg.Text = text
		}
	}
	if t.MaxOutputTokens != nil {
		maxTokens, err := rc.RenderInt(t.MaxOutputTokens)
		if err != nil {
			return err
		}
		cfg.MaxOutputTokens = &maxTokens
	}
	if t.Temperature != nil {
		if cfg.Temperature, err = rc.RenderFloat(t.Temperature); err != nil {
			return err
		}
	}
	if t.TopP != nil {
		if cfg.TopP, err = rc.RenderFloat(t.TopP); err != nil {
			return err
		}
	}
	if t.ParallelToolCalls != nil {
		parallel, err := rc.RenderBool(t.ParallelToolCalls)
		if err != nil {
			return err
		}
		cfg.ParallelToolCalls = &parallel
	}
	return nil
}
