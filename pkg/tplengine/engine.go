// Package tplengine evaluates the host's templated configuration values.
// Task properties are declared as Go templates with the sprig function map
// and resolved against the run variables in a single pass before any request
// is assembled.
package tplengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine renders templated strings and recursively resolves
// templates nested inside maps and slices.
type TemplateEngine struct {
	globalValues map[string]any
}

func NewEngine() *TemplateEngine {
	return &TemplateEngine{globalValues: make(map[string]any)}
}

// AddGlobalValue registers a value available to every render call.
func (e *TemplateEngine) AddGlobalValue(name string, value any) {
	e.globalValues[name] = value
}

// HasTemplate returns true if the string contains template markers.
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// RenderString renders a template string against the given variables.
// Strings without template markers are returned verbatim.
func (e *TemplateEngine) RenderString(templateStr string, vars map[string]any) (string, error) {
	if !HasTemplate(templateStr) {
		return templateStr, nil
	}
	tmpl, err := template.New("inline").Option("missingkey=error").Funcs(sprig.FuncMap()).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e.mergedVars(vars)); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}

// ParseAny resolves templates anywhere inside the value. Strings are
// rendered; maps and slices are walked recursively; other primitives pass
// through unchanged.
func (e *TemplateEngine) ParseAny(value any, vars map[string]any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return e.parseStringValue(v, vars)
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			parsed, err := e.ParseAny(val, vars)
			if err != nil {
				return nil, fmt.Errorf("failed to parse template in map key %s: %w", k, err)
			}
			result[k] = parsed
		}
		return result, nil
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			parsed, err := e.ParseAny(val, vars)
			if err != nil {
				return nil, fmt.Errorf("failed to parse template in array index %d: %w", i, err)
			}
			result[i] = parsed
		}
		return result, nil
	default:
		return v, nil
	}
}

// parseStringValue renders a string and converts JSON-shaped or boolean
// results back into structured values so downstream config resolution sees
// concrete types rather than serialized text.
func (e *TemplateEngine) parseStringValue(v string, vars map[string]any) (any, error) {
	if !HasTemplate(v) {
		return v, nil
	}
	rendered, err := e.RenderString(v, vars)
	if err != nil {
		return nil, err
	}
	if rendered == "true" {
		return true, nil
	}
	if rendered == "false" {
		return false, nil
	}
	trimmed := strings.TrimSpace(rendered)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var jsonObj any
		if json.Unmarshal([]byte(trimmed), &jsonObj) == nil {
			return jsonObj, nil
		}
	}
	return rendered, nil
}

func (e *TemplateEngine) mergedVars(vars map[string]any) map[string]any {
	merged := make(map[string]any, len(vars)+len(e.globalValues))
	for k, v := range e.globalValues {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return merged
}
