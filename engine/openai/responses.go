package openai

import (
	"context"
	"encoding/json"
)

// Responses API wire objects. Input content is a tagged union: exactly one
// variant per part, discriminated on the wire by the "type" field.

// InputContent is implemented by InputText, InputImage, and InputFile.
type InputContent interface {
	inputContent()
}

type InputText struct {
	Text string
}

func (InputText) inputContent() {}

func (t InputText) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "input_text", Text: t.Text})
}

// InputImage references an image by public URL, data URI, or uploaded file
// ID. Detail controls the model's image resolution.
type InputImage struct {
	ImageURL string
	FileID   string
	Detail   string
}

func (InputImage) inputContent() {}

func (i InputImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Detail   string `json:"detail,omitempty"`
		ImageURL string `json:"image_url,omitempty"`
		FileID   string `json:"file_id,omitempty"`
	}{Type: "input_image", Detail: i.Detail, ImageURL: i.ImageURL, FileID: i.FileID})
}

// InputFile references an uploaded file by ID or carries inline file data
// with its filename.
type InputFile struct {
	FileID   string
	Filename string
	FileData string
}

func (InputFile) inputContent() {}

func (f InputFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		FileID   string `json:"file_id,omitempty"`
		Filename string `json:"filename,omitempty"`
		FileData string `json:"file_data,omitempty"`
	}{Type: "input_file", FileID: f.FileID, Filename: f.Filename, FileData: f.FileData})
}

type InputMessage struct {
	Role    string         `json:"role"`
	Content []InputContent `json:"content"`
}

type Reasoning struct {
	Effort  string `json:"effort,omitempty" mapstructure:"effort"`
	Summary string `json:"summary,omitempty" mapstructure:"summary"`
}

type TextFormat struct {
	Type   string         `json:"type" mapstructure:"type"`
	Name   string         `json:"name,omitempty" mapstructure:"name"`
	Schema map[string]any `json:"schema,omitempty" mapstructure:"schema"`
	Strict *bool          `json:"strict,omitempty" mapstructure:"strict"`
}

type TextConfig struct {
	Format *TextFormat `json:"format,omitempty" mapstructure:"format"`
}

// ResponseTool covers function tools and the built-in web/file search
// tools; unused fields stay empty on the wire.
type ResponseTool struct {
	Type              string         `json:"type" mapstructure:"type"`
	Name              string         `json:"name,omitempty" mapstructure:"name"`
	Description       string         `json:"description,omitempty" mapstructure:"description"`
	Strict            *bool          `json:"strict,omitempty" mapstructure:"strict"`
	Parameters        map[string]any `json:"parameters,omitempty" mapstructure:"parameters"`
	SearchContextSize string         `json:"search_context_size,omitempty" mapstructure:"search_context_size"`
	UserLocation      map[string]any `json:"user_location,omitempty" mapstructure:"user_location"`
	VectorStoreIDs    []string       `json:"vector_store_ids,omitempty" mapstructure:"vector_store_ids"`
	MaxNumResults     *int           `json:"max_num_results,omitempty" mapstructure:"max_num_results"`
}

type ResponseRequest struct {
	Model              string         `json:"model"`
	Input              any            `json:"input"`
	Store              *bool          `json:"store,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	Reasoning          *Reasoning     `json:"reasoning,omitempty"`
	Text               *TextConfig    `json:"text,omitempty"`
	Tools              []ResponseTool `json:"tools,omitempty"`
	ToolChoice         string         `json:"tool_choice,omitempty"`
	ParallelToolCalls  *bool          `json:"parallel_tool_calls,omitempty"`
	Temperature        *float64       `json:"temperature,omitempty"`
	TopP               *float64       `json:"top_p,omitempty"`
	MaxOutputTokens    *int           `json:"max_output_tokens,omitempty"`
	User               string         `json:"user,omitempty"`
}

type Annotation struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

type OutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// OutputItem is one element of the response output list: an assistant
// message, a function call, or a built-in tool invocation record.
type OutputItem struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Status    string          `json:"status,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
}

type ResponseUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

type Response struct {
	ID                 string         `json:"id"`
	Object             string         `json:"object,omitempty"`
	Model              string         `json:"model"`
	Status             string         `json:"status,omitempty"`
	Output             []OutputItem   `json:"output"`
	Usage              *ResponseUsage `json:"usage,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
}

func (c *Client) CreateResponse(ctx context.Context, req *ResponseRequest) (*Response, error) {
	out := &Response{}
	if err := c.post(ctx, "/responses", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
