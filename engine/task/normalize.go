package task

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// messageSpec is the decoded shape of one raw input message from the
// rendered configuration.
type messageSpec struct {
	Role    string `mapstructure:"role"`
	Content any    `mapstructure:"content"`
}

// contentSpec is the decoded shape of one raw content part. Exactly one of
// the payload groups is expected to be populated, discriminated by Type.
type contentSpec struct {
	Type     string `mapstructure:"type"`
	Text     string `mapstructure:"text"`
	ImageURL string `mapstructure:"image_url"`
	FileID   string `mapstructure:"file_id"`
	Detail   string `mapstructure:"detail"`
	MimeType string `mapstructure:"mimeType"`
	Filename string `mapstructure:"filename"`
	FileData string `mapstructure:"file_data"`
}

var imageMIMEByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

var supportedImageMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// normalizeInput converts the rendered `input` value into canonical input
// messages. A plain string becomes a single user message; a JSON-array
// string or a structured list becomes one message per element, with every
// content part normalized.
func normalizeInput(ctx context.Context, rc *runner.Context, value any) ([]openai.InputMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var raw []any
			if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
				return nil, core.NewEvalError(err, "failed to parse `input` as a message list")
			}
			return messagesFromList(ctx, rc, raw)
		}
		return []openai.InputMessage{{
			Role:    openai.RoleUser,
			Content: []openai.InputContent{openai.InputText{Text: v}},
		}}, nil
	case []any:
		return messagesFromList(ctx, rc, v)
	default:
		return nil, core.NewArgumentError("`input` must be a string or a list of messages, got %T", value)
	}
}

func messagesFromList(ctx context.Context, rc *runner.Context, raw []any) ([]openai.InputMessage, error) {
	messages := make([]openai.InputMessage, 0, len(raw))
	for i, item := range raw {
		msg, err := messageFromRaw(ctx, rc, item)
		if err != nil {
			return nil, fmt.Errorf("input message[%d]: %w", i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func messageFromRaw(ctx context.Context, rc *runner.Context, raw any) (openai.InputMessage, error) {
	var spec messageSpec
	if err := decodeSpec(raw, &spec); err != nil {
		return openai.InputMessage{}, err
	}
	role := normalizeRole(spec.Role)
	switch content := spec.Content.(type) {
	case string:
		return openai.InputMessage{
			Role:    role,
			Content: []openai.InputContent{openai.InputText{Text: content}},
		}, nil
	case []any:
		parts := make([]openai.InputContent, 0, len(content))
		for i, rawPart := range content {
			part, keep, err := normalizeContentPart(ctx, rc, rawPart)
			if err != nil {
				return openai.InputMessage{}, fmt.Errorf("content part[%d]: %w", i, err)
			}
			if keep {
				parts = append(parts, part)
			}
		}
		return openai.InputMessage{Role: role, Content: parts}, nil
	default:
		return openai.InputMessage{}, core.NewArgumentError(
			"message content must be a string or a list of content parts, got %T", spec.Content)
	}
}

// normalizeContentPart pattern-matches one raw content part onto the typed
// variant it represents. The boolean result reports whether the part is
// kept; file parts without any usable payload are dropped.
func normalizeContentPart(ctx context.Context, rc *runner.Context, raw any) (openai.InputContent, bool, error) {
	var spec contentSpec
	if err := decodeSpec(raw, &spec); err != nil {
		return nil, false, err
	}
	switch spec.Type {
	case "input_text", "":
		if spec.Type == "" && spec.Text == "" {
			return nil, false, core.NewArgumentError("content part has no `type` and no `text`")
		}
		return openai.InputText{Text: spec.Text}, true, nil
	case "input_image":
		return normalizeImagePart(ctx, rc, &spec)
	case "input_file":
		return normalizeFilePart(rc, &spec)
	default:
		return nil, false, core.NewArgumentError("unsupported content part type %q", spec.Type)
	}
}

func normalizeImagePart(ctx context.Context, rc *runner.Context, spec *contentSpec) (openai.InputContent, bool, error) {
	detail := spec.Detail
	if detail == "" {
		detail = "auto"
		rc.Logger().Debug("image detail not set, defaulting to auto")
	}
	if spec.ImageURL != "" {
		imageURL := spec.ImageURL
		if rc.Storage().IsInternal(imageURL) {
			inlined, err := inlineInternalImage(ctx, rc, spec)
			if err != nil {
				return nil, false, err
			}
			imageURL = inlined
		}
		return openai.InputImage{ImageURL: imageURL, Detail: detail}, true, nil
	}
	if spec.FileID != "" {
		return openai.InputImage{FileID: spec.FileID, Detail: detail}, true, nil
	}
	rc.Logger().Warn("image content part has neither image_url nor file_id, passing through unchanged")
	return openai.InputImage{Detail: detail}, true, nil
}

func normalizeFilePart(rc *runner.Context, spec *contentSpec) (openai.InputContent, bool, error) {
	if spec.FileID != "" {
		return openai.InputFile{FileID: spec.FileID}, true, nil
	}
	if spec.FileData != "" && spec.Filename != "" {
		return openai.InputFile{Filename: spec.Filename, FileData: spec.FileData}, true, nil
	}
	rc.Logger().Warn("file content part dropped: needs file_id, or file_data with filename")
	return nil, false, nil
}

// inlineInternalImage fetches an internal-storage image and wraps its bytes
// as a base64 data URI. The MIME type comes from the explicit mimeType
// property when present, else from the filename extension; anything outside
// the supported image types fails the task.
func inlineInternalImage(ctx context.Context, rc *runner.Context, spec *contentSpec) (string, error) {
	filename := storageFilename(spec.ImageURL)
	mimeType := spec.MimeType
	if mimeType == "" {
		mimeType = imageMIMEByExt[strings.ToLower(path.Ext(filename))]
	}
	if !supportedImageMIMEs[mimeType] {
		if mimeType == "" {
			mimeType = "unknown"
		}
		return "", core.NewArgumentError("unsupported or unknown MIME type %q for image file %q", mimeType, filename)
	}
	reader, err := rc.Storage().GetFile(ctx, spec.ImageURL)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s from storage: %w", spec.ImageURL, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s from storage: %w", spec.ImageURL, err)
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

func storageFilename(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return path.Base(uri)
	}
	return path.Base(parsed.Path)
}

func normalizeRole(role string) string {
	switch strings.ToLower(role) {
	case openai.RoleAssistant:
		return openai.RoleAssistant
	case openai.RoleSystem:
		return openai.RoleSystem
	default:
		return openai.RoleUser
	}
}

// decodeSpec converts a rendered raw value into a typed spec struct.
func decodeSpec(raw any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return core.NewEvalError(err, "failed to build decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return core.NewEvalError(err, "failed to decode rendered value")
	}
	return nil
}
