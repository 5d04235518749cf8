package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSchema struct {
	A string   `json:"a" description:"Field A"`
	B *int     `json:"b" description:"Optional pointer field"`
	C int      `json:"c,omitempty" description:"Omit empty field"`
	D string   `json:"d,omitempty" enum:"x, y"`
	E []string `json:"e,omitempty"`
	f string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleSchema{f: "hidden"})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "f")
	assert.Equal(t, []string{"x", "y"}, props["d"].(map[string]any)["enum"])
	assert.Equal(t, map[string]any{"type": "string"}, props["e"].(map[string]any)["items"])

	// only non-pointer, non-omitempty fields are required
	assert.ElementsMatch(t, []string{"a"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)
	assert.Contains(t, vErr.Message, "integer")
}

func TestCompileSchema(t *testing.T) {
	t.Run("empty schema accepts everything", func(t *testing.T) {
		v, err := CompileSchema(nil)
		require.NoError(t, err)
		assert.NoError(t, v.Validate(map[string]any{"anything": true}))
		assert.NoError(t, v.Validate(nil))
	})

	t.Run("invalid schema", func(t *testing.T) {
		_, err := CompileSchema(map[string]any{"type": 12})
		assert.Error(t, err)
	})

	t.Run("struct schema round trip", func(t *testing.T) {
		v, err := CompileSchema(CreateSchema(sampleSchema{}))
		require.NoError(t, err)
		assert.NoError(t, v.Validate(map[string]any{"a": "ok"}))
		assert.Error(t, v.Validate(map[string]any{"a": "ok", "d": "z"}))
	})
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Hello {{.name | upper}} from {{default "nowhere" .city}}`, map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA from nowhere", out)

	out, err = RenderTemplate("Journey: {{.journey}}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Journey: ", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
