package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFunctionDefinition(t *testing.T) {
	t.Run("Should translate parameters into an object schema", func(t *testing.T) {
		fn := &ChatFunction{
			Name:        "get_weather",
			Description: "Look up the weather",
			Parameters: []ChatFunctionParameter{
				{Name: "location", Type: "string", Description: "City name", Required: true},
				{Name: "unit", Type: "string", EnumValues: []string{"celsius", "fahrenheit"}},
			},
		}
		def, err := buildFunctionDefinition(fn)
		require.NoError(t, err)
		assert.Equal(t, "get_weather", def.Name)
		schema, ok := def.Parameters.(objectSchema)
		require.True(t, ok)
		assert.Equal(t, "object", schema.Type)
		assert.Equal(t, []string{"location"}, schema.Required)
		assert.Equal(t, "string", schema.Properties["location"].Type)
		assert.Equal(t, []string{"celsius", "fahrenheit"}, schema.Properties["unit"].Enum)
	})

	t.Run("Should omit the enum key when no values are constrained", func(t *testing.T) {
		fn := &ChatFunction{
			Name: "echo",
			Parameters: []ChatFunctionParameter{
				{Name: "message", Type: "string"},
			},
		}
		def, err := buildFunctionDefinition(fn)
		require.NoError(t, err)
		raw, err := json.Marshal(def.Parameters)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), `"enum"`)
	})

	t.Run("Should serialize empty properties and required for a parameterless function", func(t *testing.T) {
		def, err := buildFunctionDefinition(&ChatFunction{Name: "ping"})
		require.NoError(t, err)
		raw, err := json.Marshal(def.Parameters)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(raw))
	})

	t.Run("Should fail when the function has no name", func(t *testing.T) {
		_, err := buildFunctionDefinition(&ChatFunction{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a name")
	})

	t.Run("Should fail when a parameter is missing its type", func(t *testing.T) {
		fn := &ChatFunction{
			Name: "broken",
			Parameters: []ChatFunctionParameter{
				{Name: "value"},
			},
		}
		_, err := buildFunctionDefinition(fn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `function "broken"`)
	})
}

func TestBuildChatTools(t *testing.T) {
	t.Run("Should wrap each function into a tool and collect names", func(t *testing.T) {
		tools, names, err := buildChatTools([]ChatFunction{
			{Name: "first"},
			{Name: "second"},
		})
		require.NoError(t, err)
		require.Len(t, tools, 2)
		assert.Equal(t, "function", tools[0].Type)
		assert.True(t, names["first"])
		assert.True(t, names["second"])
	})

	t.Run("Should return nothing for an empty function list", func(t *testing.T) {
		tools, names, err := buildChatTools(nil)
		require.NoError(t, err)
		assert.Nil(t, tools)
		assert.Nil(t, names)
	})
}
