package schema

import (
	"testing"

	"github.com/nasdf/capydoc/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userJSONSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "age": {"type": "integer", "minimum": 0},
    "score": {"type": "number"}
  },
  "required": ["name"],
  "additionalProperties": false
}`

func TestJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator(map[string]string{"User": userJSONSchema})
	require.NoError(t, err)

	out, err := v.Validate("User", map[string]any{"name": "Bob", "age": 30, "score": 1.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Bob", "age": int64(30), "score": 1.5}, out)

	_, err = v.Validate("User", map[string]any{"name": "Bob", "age": -1})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "age", verr.Field)

	_, err = v.Validate("User", map[string]any{"age": 1})
	assert.ErrorAs(t, err, &verr)

	_, err = v.Validate("User", map[string]any{"name": "Bob", "id": "1"})
	assert.ErrorAs(t, err, &verr)

	_, err = v.Validate("Post", map[string]any{})
	var notFound *core.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestJSONSchemaValidatorCompileError(t *testing.T) {
	_, err := NewJSONSchemaValidator(map[string]string{"User": `{"type":`})
	assert.Error(t, err)
}
