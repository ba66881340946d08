package task

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestry/plugin-openai/engine/runner"
)

type uploadCapture struct {
	purpose  string
	filename string
	body     []byte
}

func uploadServer(t *testing.T) (*httptest.Server, *uploadCapture) {
	t.Helper()
	captured := &uploadCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		captured.purpose = r.FormValue("purpose")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		captured.filename = header.Filename
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		captured.body = body

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"id":       "file-xyz",
			"object":   "file",
			"filename": header.Filename,
			"purpose":  captured.purpose,
			"bytes":    header.Size,
		}))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestUploadFileRun(t *testing.T) {
	t.Run("Should upload a stored file and report its metadata", func(t *testing.T) {
		server, captured := uploadServer(t)
		storage := memStorage(t)
		uri, err := storage.Put("files/notes.txt", []byte("meeting notes"))
		require.NoError(t, err)

		rc := runner.NewContext(
			runner.WithStorage(storage),
			runner.WithWorkingDir(t.TempDir()),
		)
		task := &UploadFile{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			From:     uri,
			Purpose:  "assistants",
		}
		out, err := task.Run(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, "file-xyz", out.FileID)
		assert.Equal(t, "notes.txt", out.Filename)
		assert.Equal(t, int64(len("meeting notes")), out.Bytes)

		assert.Equal(t, "assistants", captured.purpose)
		assert.Equal(t, "notes.txt", captured.filename)
		assert.Equal(t, []byte("meeting notes"), captured.body)
	})

	t.Run("Should map purpose names case-insensitively", func(t *testing.T) {
		server, captured := uploadServer(t)
		storage := memStorage(t)
		uri, err := storage.Put("files/train.jsonl", []byte(`{"messages":[]}`))
		require.NoError(t, err)

		rc := runner.NewContext(
			runner.WithStorage(storage),
			runner.WithWorkingDir(t.TempDir()),
		)
		task := &UploadFile{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			From:     uri,
			Purpose:  "FINE_TUNE",
		}
		_, err = task.Run(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, "fine-tune", captured.purpose)
	})

	t.Run("Should fall back to assistants for an unrecognized purpose", func(t *testing.T) {
		server, captured := uploadServer(t)
		storage := memStorage(t)
		uri, err := storage.Put("files/notes.txt", []byte("notes"))
		require.NoError(t, err)

		rc := runner.NewContext(
			runner.WithStorage(storage),
			runner.WithWorkingDir(t.TempDir()),
		)
		task := &UploadFile{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			From:     uri,
			Purpose:  "archival",
		}
		_, err = task.Run(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, "assistants", captured.purpose)
	})

	t.Run("Should fail when purpose is missing", func(t *testing.T) {
		task := &UploadFile{
			BaseTask: BaseTask{APIKey: "test-key"},
			From:     "internal:///files/notes.txt",
		}
		_, err := task.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "`purpose` must be set")
	})

	t.Run("Should fail when the source file does not exist", func(t *testing.T) {
		server, _ := uploadServer(t)
		storage := memStorage(t)
		rc := runner.NewContext(runner.WithStorage(storage))
		task := &UploadFile{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			From:     "internal:///files/missing.txt",
			Purpose:  "assistants",
		}
		_, err := task.Run(context.Background(), rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.txt")
	})
}
