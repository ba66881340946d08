package core

import "fmt"

// ArgumentError marks configuration and validation failures: missing
// required properties, mutually exclusive properties both unset, or a
// tool-choice referencing an unknown function. These fail the task
// immediately and surface to the pipeline with their message.
type ArgumentError struct {
	msg string
}

func (e *ArgumentError) Error() string {
	return e.msg
}

func NewArgumentError(format string, args ...any) *ArgumentError {
	return &ArgumentError{msg: fmt.Sprintf(format, args...)}
}

// EvalError marks variable-evaluation failures: a template that cannot be
// rendered, or a rendered value that cannot be decoded into the shape a
// property expects.
type EvalError struct {
	msg string
	err error
}

func (e *EvalError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *EvalError) Unwrap() error {
	return e.err
}

func NewEvalError(err error, format string, args ...any) *EvalError {
	return &EvalError{msg: fmt.Sprintf(format, args...), err: err}
}
