package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// UploadFile pushes a file from host storage to the OpenAI files endpoint so
// later tasks can reference it by file ID.
type UploadFile struct {
	BaseTask `json:",inline" yaml:",inline"`

	// From is the internal storage URI of the file to upload. Required.
	From any `json:"from" yaml:"from"`
	// Purpose declares what the file will be used for: ASSISTANTS,
	// FINE_TUNE, VISION, USER_DATA, EVALS, or BATCH. Required.
	Purpose any `json:"purpose" yaml:"purpose"`
}

type UploadFileOutput struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

type uploadFileConfig struct {
	From    string `validate:"required"`
	Purpose openai.FilePurpose
}

var filePurposes = map[string]openai.FilePurpose{
	"assistants": openai.PurposeAssistants,
	"fine_tune":  openai.PurposeFineTune,
	"fine-tune":  openai.PurposeFineTune,
	"vision":     openai.PurposeVision,
	"user_data":  openai.PurposeUserData,
	"evals":      openai.PurposeEvals,
	"batch":      openai.PurposeBatch,
}

func (t *UploadFile) Run(ctx context.Context, rc *runner.Context) (*UploadFileOutput, error) {
	client, err := t.client(rc)
	if err != nil {
		return nil, err
	}
	cfg, err := t.resolve(rc)
	if err != nil {
		return nil, err
	}
	localPath, err := t.stageFile(ctx, rc, cfg.From)
	if err != nil {
		return nil, err
	}
	defer os.Remove(localPath)

	mimeType := ""
	if detected, err := mimetype.DetectFile(localPath); err == nil {
		mimeType = detected.String()
	}
	file, err := client.UploadFile(ctx, &openai.UploadFileRequest{
		Path:     localPath,
		Filename: storageFilename(cfg.From),
		Purpose:  cfg.Purpose,
		MimeType: mimeType,
	})
	if err != nil {
		return nil, err
	}
	rc.Logger().Info("uploaded file", "fileId", file.ID, "bytes", file.Bytes)
	return &UploadFileOutput{
		FileID:   file.ID,
		Filename: file.Filename,
		Bytes:    file.Bytes,
	}, nil
}

// stageFile copies the storage object to a scratch file so the upload can
// stream from disk. The extension survives the copy for MIME detection.
func (t *UploadFile) stageFile(ctx context.Context, rc *runner.Context, uri string) (string, error) {
	reader, err := rc.Storage().GetFile(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from storage: %w", uri, err)
	}
	defer reader.Close()
	tmp, err := rc.CreateTempFile(path.Ext(storageFilename(uri)))
	if err != nil {
		return "", core.NewEvalError(err, "failed to create temporary upload file")
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", core.NewEvalError(err, "failed to stage %s for upload", uri)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", core.NewEvalError(err, "failed to stage %s for upload", uri)
	}
	return tmp.Name(), nil
}

func (t *UploadFile) resolve(rc *runner.Context) (*uploadFileConfig, error) {
	cfg := &uploadFileConfig{}
	var err error
	if cfg.From, err = renderAsString(rc, t.From); err != nil {
		return nil, err
	}
	if cfg.Purpose, err = t.resolvePurpose(rc); err != nil {
		return nil, err
	}
	if err = validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (t *UploadFile) resolvePurpose(rc *runner.Context) (openai.FilePurpose, error) {
	if t.Purpose == nil {
		return "", core.NewArgumentError("`purpose` must be set")
	}
	rendered, err := renderAsString(rc, t.Purpose)
	if err != nil {
		return "", err
	}
	purpose, ok := filePurposes[normalizeEnum(rendered)]
	if !ok {
		rc.Logger().Warn("unrecognized file purpose, falling back to assistants", "purpose", rendered)
		return openai.PurposeAssistants, nil
	}
	return purpose, nil
}
