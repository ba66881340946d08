package openai

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// APIError is an upstream API failure. It propagates unmodified through the
// task layer; the orchestrator owns any retry decision.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Param      string
	Code       any
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai: %s (status %d, type %s)", e.Message, e.StatusCode, e.Type)
	}
	return fmt.Sprintf("openai: %s (status %d)", e.Message, e.StatusCode)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param"`
	Code    any    `json:"code"`
}

func apiErrorFromResponse(resp *resty.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Message:    resp.Status(),
	}
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Type = env.Error.Type
		apiErr.Param = env.Error.Param
		apiErr.Code = env.Error.Code
	}
	return apiErr
}
