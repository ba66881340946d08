package core

import (
	"encoding/json"
	"fmt"
)

// Output is the generic map form of a task result, used where downstream
// pipeline steps need to inspect a raw response without a typed schema.
type Output map[string]any

// AsMap converts any JSON-serializable value into an Output map.
func AsMap(v any) (Output, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value: %w", err)
	}
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to convert value to map: %w", err)
	}
	return out, nil
}
