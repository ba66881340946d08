package task

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// CreateImage generates images from a text prompt. With download enabled the
// generated bytes are persisted to host storage instead of returning
// short-lived API URLs.
type CreateImage struct {
	BaseTask `json:",inline" yaml:",inline"`

	// Prompt is the image description. Required.
	Prompt any `json:"prompt" yaml:"prompt"`
	// N is the number of images to generate.
	N any `json:"n,omitempty" yaml:"n,omitempty"`
	// Size is SMALL (256x256), MEDIUM (512x512), or LARGE (1024x1024).
	// Defaults to LARGE.
	Size any `json:"size,omitempty" yaml:"size,omitempty"`
	// Download persists the images to host storage. Defaults to false.
	Download any `json:"download,omitempty" yaml:"download,omitempty"`
}

type CreateImageOutput struct {
	// Images holds one entry per generated image: a storage URI when
	// download is enabled, the API-hosted URL otherwise.
	Images []string `json:"images"`
}

type createImageConfig struct {
	Prompt   string `validate:"required"`
	N        *int
	Size     string
	Download bool
	User     string
}

var imageSizes = map[string]string{
	"small":  openai.ImageSize256,
	"medium": openai.ImageSize512,
	"large":  openai.ImageSize1024,
}

func (t *CreateImage) Run(ctx context.Context, rc *runner.Context) (*CreateImageOutput, error) {
	client, err := t.client(rc)
	if err != nil {
		return nil, err
	}
	cfg, err := t.resolve(rc)
	if err != nil {
		return nil, err
	}
	format := openai.ImageFormatURL
	if cfg.Download {
		format = openai.ImageFormatB64JSON
	}
	resp, err := client.GenerateImages(ctx, &openai.ImageRequest{
		Prompt:         cfg.Prompt,
		N:              cfg.N,
		Size:           cfg.Size,
		ResponseFormat: format,
		User:           cfg.User,
	})
	if err != nil {
		return nil, err
	}
	images := make([]string, 0, len(resp.Data))
	for _, data := range resp.Data {
		if !cfg.Download {
			images = append(images, data.URL)
			continue
		}
		uri, err := t.persistImage(ctx, rc, data.B64JSON)
		if err != nil {
			return nil, err
		}
		images = append(images, uri)
	}
	return &CreateImageOutput{Images: images}, nil
}

// persistImage decodes one base64 payload, writes it to a scratch file, and
// hands it to host storage.
func (t *CreateImage) persistImage(ctx context.Context, rc *runner.Context, b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", core.NewEvalError(err, "failed to decode generated image data")
	}
	tmp, err := rc.CreateTempFile(".png")
	if err != nil {
		return "", core.NewEvalError(err, "failed to create temporary image file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", core.NewEvalError(err, "failed to write temporary image file")
	}
	if err := tmp.Close(); err != nil {
		return "", core.NewEvalError(err, "failed to write temporary image file")
	}
	uri, err := rc.Storage().PutFile(ctx, tmp.Name())
	if err != nil {
		return "", core.NewEvalError(err, "failed to store generated image")
	}
	return uri, nil
}

func (t *CreateImage) resolve(rc *runner.Context) (*createImageConfig, error) {
	cfg := &createImageConfig{Size: openai.ImageSize1024}
	var err error
	if cfg.Prompt, err = renderAsString(rc, t.Prompt); err != nil {
		return nil, err
	}
	if cfg.User, err = t.renderUser(rc); err != nil {
		return nil, err
	}
	if t.N != nil {
		n, err := rc.RenderInt(t.N)
		if err != nil {
			return nil, err
		}
		cfg.N = &n
	}
	if cfg.Size, err = t.resolveSize(rc); err != nil {
		return nil, err
	}
	if t.Download != nil {
		if cfg.Download, err = rc.RenderBool(t.Download); err != nil {
			return nil, err
		}
	}
	if err = validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (t *CreateImage) resolveSize(rc *runner.Context) (string, error) {
	if t.Size == nil {
		return openai.ImageSize1024, nil
	}
	rendered, err := renderAsString(rc, t.Size)
	if err != nil {
		return "", err
	}
	if rendered == "" {
		return openai.ImageSize1024, nil
	}
	size, ok := imageSizes[normalizeEnum(rendered)]
	if !ok {
		return "", core.NewArgumentError("`size` must be SMALL, MEDIUM, or LARGE, got %q", rendered)
	}
	return size, nil
}
