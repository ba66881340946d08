package task

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/orchestry/plugin-openai/engine/core"
)

// Factory builds a zero-value task ready for YAML decoding.
type Factory func() any

var factories = map[string]Factory{
	"ChatCompletion": func() any { return &ChatCompletion{} },
	"Responses":      func() any { return &Responses{} },
	"CreateImage":    func() any { return &CreateImage{} },
	"UploadFile":     func() any { return &UploadFile{} },
}

// Register adds a task type to the registry. Host extensions call this from
// their init.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Types lists the registered task type names, sorted.
func Types() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a fresh task of the given type.
func New(name string) (any, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, core.NewArgumentError("unknown task type %q", name)
	}
	return factory(), nil
}

// FromYAML decodes a task definition of the form
//
//	type: ChatCompletion
//	apiKey: "{{ .secrets.openai }}"
//	model: gpt-4o
//	...
//
// into the concrete task struct for its type. Properties stay templated;
// they resolve at execution time.
func FromYAML(data []byte) (any, error) {
	var header struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, core.NewEvalError(err, "failed to parse task definition")
	}
	if header.Type == "" {
		return nil, core.NewArgumentError("task definition has no `type`")
	}
	task, err := New(header.Type)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, task); err != nil {
		return nil, core.NewEvalError(err, "failed to decode %s task definition", header.Type)
	}
	return task, nil
}
