// Package task implements the OpenAI plugin tasks: ChatCompletion,
// Responses, CreateImage, and UploadFile. Each task carries templated
// configuration, resolves it against the run context in a single pass,
// assembles a typed API request, and flattens the API response into an
// output consumable by downstream pipeline steps.
package task

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/engine/openai"
	"github.com/orchestry/plugin-openai/engine/runner"
)

// BaseTask holds the properties shared by every OpenAI task. All fields are
// templated and resolved at execution time.
type BaseTask struct {
	// APIKey must render to a valid OpenAI bearer credential.
	APIKey string `json:"apiKey" yaml:"apiKey"`
	// User is an optional end-user identifier forwarded to the API.
	User string `json:"user,omitempty" yaml:"user,omitempty"`
	// APITimeout is the client-side timeout in seconds. Defaults to 10.
	APITimeout int `json:"apiTimeout,omitempty" yaml:"apiTimeout,omitempty"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// client renders the credential and builds a fresh API client for this
// invocation. Clients are never shared between executions.
func (b *BaseTask) client(rc *runner.Context) (*openai.Client, error) {
	apiKey, err := rc.RenderString(b.APIKey)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, core.NewArgumentError("`apiKey` must be set")
	}
	timeout := time.Duration(b.APITimeout) * time.Second
	return openai.NewClient(openai.Config{
		APIKey:  apiKey,
		BaseURL: b.BaseURL,
		Timeout: timeout,
	}), nil
}

// renderUser resolves the optional end-user identifier.
func (b *BaseTask) renderUser(rc *runner.Context) (string, error) {
	if b.User == "" {
		return "", nil
	}
	return rc.RenderString(b.User)
}

// normalizeEnum canonicalizes user-facing enum values, which are accepted
// case-insensitively.
func normalizeEnum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

var validate = validator.New()

// validateConfig checks a resolved config struct and converts validation
// failures into argument errors.
func validateConfig(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return core.NewArgumentError("invalid task configuration: %v", err)
	}
	return nil
}
