package openai

import (
	"context"
	"fmt"
	"os"
)

type FilePurpose string

const (
	PurposeAssistants FilePurpose = "assistants"
	PurposeFineTune   FilePurpose = "fine-tune"
	PurposeVision     FilePurpose = "vision"
	PurposeUserData   FilePurpose = "user_data"
	PurposeEvals      FilePurpose = "evals"
	PurposeBatch      FilePurpose = "batch"
)

type File struct {
	ID        string `json:"id"`
	Object    string `json:"object,omitempty"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type UploadFileRequest struct {
	// Path is the local file to upload.
	Path     string
	Filename string
	Purpose  FilePurpose
	MimeType string
}

// UploadFile sends the file as a multipart form to the files endpoint.
func (c *Client) UploadFile(ctx context.Context, req *UploadFileRequest) (*File, error) {
	file, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload source %s: %w", req.Path, err)
	}
	defer file.Close()

	out := &File{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", req.Filename, req.MimeType, file).
		SetFormData(map[string]string{"purpose": string(req.Purpose)}).
		SetResult(out).
		SetError(&errorEnvelope{}).
		Post("/files")
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiErrorFromResponse(resp)
	}
	return out, nil
}
