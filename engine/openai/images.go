package openai

import "context"

const (
	ImageSize256  = "256x256"
	ImageSize512  = "512x512"
	ImageSize1024 = "1024x1024"

	ImageFormatURL     = "url"
	ImageFormatB64JSON = "b64_json"
)

type ImageRequest struct {
	Prompt         string `json:"prompt"`
	N              *int   `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	User           string `json:"user,omitempty"`
}

type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type ImageResponse struct {
	Created int64       `json:"created,omitempty"`
	Data    []ImageData `json:"data"`
}

func (c *Client) GenerateImages(ctx context.Context, req *ImageRequest) (*ImageResponse, error) {
	out := &ImageResponse{}
	if err := c.post(ctx, "/images/generations", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
