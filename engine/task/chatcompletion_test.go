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

// chatServer answers /chat/completions with the given body and captures the
// request payload for assertions.
func chatServer(t *testing.T, respond map[string]any) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := &map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(respond))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func parisResponse() map[string]any {
	return map[string]any{
		"id":     "chatcmpl-123",
		"object": "chat.completion",
		"model":  "gpt-4o-2024-08-06",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "The capital of France is Paris."},
			},
		},
		"usage": map[string]any{"prompt_tokens": 14, "completion_tokens": 9, "total_tokens": 23},
	}
}

func TestChatCompletionRun(t *testing.T) {
	t.Run("Should complete a simple conversation and emit usage metrics", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		metrics := runner.NewRecorder()
		rc := runner.NewContext(runner.WithMetrics(metrics))

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Messages: []any{
				map[string]any{"role": "user", "content": "What is the capital of France?"},
			},
		}
		out, err := chat.Run(context.Background(), rc)
		require.NoError(t, err)
		require.Len(t, out.Choices, 1)
		assert.Contains(t, out.Choices[0].Message.Content, "Paris")
		assert.Contains(t, out.Model, "gpt-4o")

		assert.Equal(t, "gpt-4o", (*captured)["model"])
		assert.Equal(t, int64(14), metrics.Get("usage.prompt.tokens"))
		assert.Equal(t, int64(9), metrics.Get("usage.completion.tokens"))
		assert.Equal(t, int64(23), metrics.Get("usage.total.tokens"))
	})

	t.Run("Should send a prompt as a user message", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		rc := runner.NewContext()

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Prompt:   "What is the capital of France?",
		}
		_, err := chat.Run(context.Background(), rc)
		require.NoError(t, err)

		messages := (*captured)["messages"].([]any)
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		assert.Equal(t, "What is the capital of France?", msg["content"])
	})

	t.Run("Should append the prompt after explicit messages", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		rc := runner.NewContext()

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Messages: []any{
				map[string]any{"role": "system", "content": "Answer in one word."},
			},
			Prompt: "Capital of France?",
		}
		_, err := chat.Run(context.Background(), rc)
		require.NoError(t, err)

		messages := (*captured)["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	})

	t.Run("Should render templated properties from run variables", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		rc := runner.NewContext(runner.WithVars(map[string]any{
			"secrets": map[string]any{"openai": "test-key"},
			"country": "France",
		}))

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "{{ .secrets.openai }}", BaseURL: server.URL},
			Model:    "gpt-4o",
			Prompt:   "What is the capital of {{ .country }}?",
		}
		_, err := chat.Run(context.Background(), rc)
		require.NoError(t, err)

		messages := (*captured)["messages"].([]any)
		assert.Equal(t, "What is the capital of France?", messages[0].(map[string]any)["content"])
	})

	t.Run("Should fail fast when neither messages nor prompt is set", func(t *testing.T) {
		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key"},
			Model:    "gpt-4o",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "either `messages` or `prompt` must be set")
	})

	t.Run("Should fail fast when the API key is empty", func(t *testing.T) {
		chat := &ChatCompletion{
			Model:  "gpt-4o",
			Prompt: "hello",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "`apiKey` must be set")
	})

	t.Run("Should surface API errors with status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
		}))
		t.Cleanup(server.Close)

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "bad-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Prompt:   "hello",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Incorrect API key provided")
	})

	t.Run("Should switch to structured output when a response schema is set", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		rc := runner.NewContext()

		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Prompt:   "List the capital of France.",
			JSONResponseSchema: map[string]any{
				"name":   "capitals",
				"schema": map[string]any{"type": "object"},
			},
		}
		_, err := chat.Run(context.Background(), rc)
		require.NoError(t, err)

		format := (*captured)["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
		require.Contains(t, format, "json_schema")
	})
}

func TestChatCompletionToolChoice(t *testing.T) {
	weatherFunctions := []any{
		map[string]any{
			"name":        "get_weather",
			"description": "Look up the weather",
			"parameters": []any{
				map[string]any{"name": "location", "type": "string", "required": true},
			},
		},
	}

	t.Run("Should default to auto when functions are declared", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask:  BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:     "gpt-4o",
			Prompt:    "Weather in Paris?",
			Functions: weatherFunctions,
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.NoError(t, err)
		assert.Equal(t, "auto", (*captured)["tool_choice"])
		tools := (*captured)["tools"].([]any)
		require.Len(t, tools, 1)
	})

	t.Run("Should omit tool_choice entirely without functions", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask: BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:    "gpt-4o",
			Prompt:   "hello",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.NoError(t, err)
		assert.NotContains(t, *captured, "tool_choice")
	})

	t.Run("Should honor none without functions by sending no tool_choice", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask:     BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:        "gpt-4o",
			Prompt:       "hello",
			FunctionCall: "none",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.NoError(t, err)
		assert.NotContains(t, *captured, "tool_choice")
	})

	t.Run("Should send a named tool choice for a declared function", func(t *testing.T) {
		server, captured := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask:     BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:        "gpt-4o",
			Prompt:       "Weather in Paris?",
			Functions:    weatherFunctions,
			FunctionCall: "get_weather",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.NoError(t, err)
		choice := (*captured)["tool_choice"].(map[string]any)
		assert.Equal(t, "function", choice["type"])
		assert.Equal(t, "get_weather", choice["function"].(map[string]any)["name"])
	})

	t.Run("Should fail when the named function is not declared", func(t *testing.T) {
		server, _ := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask:     BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:        "gpt-4o",
			Prompt:       "Weather in Paris?",
			Functions:    weatherFunctions,
			FunctionCall: "get_forecast",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `function "get_forecast" is not provided in functions list`)
	})

	t.Run("Should fail when a function name is set without functions", func(t *testing.T) {
		server, _ := chatServer(t, parisResponse())
		chat := &ChatCompletion{
			BaseTask:     BaseTask{APIKey: "test-key", BaseURL: server.URL},
			Model:        "gpt-4o",
			Prompt:       "Weather in Paris?",
			FunctionCall: "get_weather",
		}
		_, err := chat.Run(context.Background(), runner.NewContext())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "when no functions are provided")
	})
}
