// Package runner exposes the narrow slice of the orchestration host a task
// sees during execution: variable rendering, storage access, metric
// emission, and a working directory for temporary files.
package runner

import (
	"os"

	"github.com/spf13/cast"

	"github.com/orchestry/plugin-openai/engine/core"
	"github.com/orchestry/plugin-openai/pkg/logger"
	"github.com/orchestry/plugin-openai/pkg/tplengine"
)

// Context carries everything a task invocation needs from the host. A
// context is built per execution and discarded afterwards; nothing is
// shared between invocations.
type Context struct {
	engine  *tplengine.TemplateEngine
	vars    map[string]any
	storage Storage
	metrics Metrics
	workdir string
	log     logger.Logger
}

type Option func(*Context)

func WithVars(vars map[string]any) Option {
	return func(c *Context) { c.vars = vars }
}

func WithStorage(storage Storage) Option {
	return func(c *Context) { c.storage = storage }
}

func WithMetrics(metrics Metrics) Option {
	return func(c *Context) { c.metrics = metrics }
}

func WithWorkingDir(dir string) Option {
	return func(c *Context) { c.workdir = dir }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Context) { c.log = log }
}

func WithEngine(engine *tplengine.TemplateEngine) Option {
	return func(c *Context) { c.engine = engine }
}

func NewContext(opts ...Option) *Context {
	ctx := &Context{
		engine:  tplengine.NewEngine(),
		vars:    make(map[string]any),
		metrics: NopMetrics{},
		workdir: os.TempDir(),
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

func (c *Context) Logger() logger.Logger {
	return c.log
}

// Storage returns the host storage boundary. A context without storage
// still answers IsInternal queries so normalization can treat every URI as
// external.
func (c *Context) Storage() Storage {
	if c.storage == nil {
		return nopStorage{}
	}
	return c.storage
}

// Metric emits a counter metric through the host metric API.
func (c *Context) Metric(name string, value int64) {
	if c.metrics != nil {
		c.metrics.Counter(name, value)
	}
}

// WorkingDir is the scratch directory for this execution.
func (c *Context) WorkingDir() string {
	return c.workdir
}

// CreateTempFile creates an empty file in the working directory with the
// given suffix. The caller owns the file.
func (c *Context) CreateTempFile(suffix string) (*os.File, error) {
	return os.CreateTemp(c.workdir, "openai-*"+suffix)
}

// RenderString renders a templated string against the run variables.
func (c *Context) RenderString(value string) (string, error) {
	rendered, err := c.engine.RenderString(value, c.vars)
	if err != nil {
		return "", core.NewEvalError(err, "failed to render value")
	}
	return rendered, nil
}

// RenderAny resolves templates recursively inside an arbitrary value.
func (c *Context) RenderAny(value any) (any, error) {
	rendered, err := c.engine.ParseAny(value, c.vars)
	if err != nil {
		return nil, core.NewEvalError(err, "failed to render value")
	}
	return rendered, nil
}

// The typed render helpers below implement the render-then-convert pass:
// templates are resolved first, then the concrete value is coerced into the
// type the resolved config expects. Conversion failures surface as
// evaluation errors.

func (c *Context) RenderFloat(value any) (float64, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return 0, err
	}
	out, err := cast.ToFloat64E(rendered)
	if err != nil {
		return 0, core.NewEvalError(err, "expected a number")
	}
	return out, nil
}

func (c *Context) RenderInt(value any) (int, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return 0, err
	}
	out, err := cast.ToIntE(rendered)
	if err != nil {
		return 0, core.NewEvalError(err, "expected an integer")
	}
	return out, nil
}

func (c *Context) RenderInt64(value any) (int64, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return 0, err
	}
	out, err := cast.ToInt64E(rendered)
	if err != nil {
		return 0, core.NewEvalError(err, "expected an integer")
	}
	return out, nil
}

func (c *Context) RenderBool(value any) (bool, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return false, err
	}
	out, err := cast.ToBoolE(rendered)
	if err != nil {
		return false, core.NewEvalError(err, "expected a boolean")
	}
	return out, nil
}

func (c *Context) RenderStringSlice(value any) ([]string, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return nil, err
	}
	out, err := cast.ToStringSliceE(rendered)
	if err != nil {
		return nil, core.NewEvalError(err, "expected a list of strings")
	}
	return out, nil
}

func (c *Context) RenderStringMap(value any) (map[string]string, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return nil, err
	}
	out, err := cast.ToStringMapStringE(rendered)
	if err != nil {
		return nil, core.NewEvalError(err, "expected a string map")
	}
	return out, nil
}

func (c *Context) RenderIntMap(value any) (map[string]int, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return nil, err
	}
	out, err := cast.ToStringMapIntE(rendered)
	if err != nil {
		return nil, core.NewEvalError(err, "expected a map of integers")
	}
	return out, nil
}

func (c *Context) RenderMap(value any) (map[string]any, error) {
	rendered, err := c.RenderAny(value)
	if err != nil {
		return nil, err
	}
	out, err := cast.ToStringMapE(rendered)
	if err != nil {
		return nil, core.NewEvalError(err, "expected a map")
	}
	return out, nil
}
