package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Setenv("CAPYDOC_DATA", "/var/lib/capydoc")

	cfg, err := Parse([]byte(`
schema: |
  type User { name: String! }
log:
  level: debug
  format: console
pagination:
  defaultLimit: 25
persistence:
  enabled: true
  dir: ${CAPYDOC_DATA}
`))
	require.NoError(t, err)
	assert.Equal(t, ValidationGraphQL, cfg.Validation)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 25, cfg.Pagination.DefaultLimit)
	assert.True(t, cfg.Persistence.Enabled)
	assert.Equal(t, "/var/lib/capydoc", cfg.Persistence.Dir)

	source, err := cfg.SchemaSource()
	require.NoError(t, err)
	assert.Contains(t, source, "type User")

	logger, err := cfg.Log.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`schemaFile: schema.graphql`))
	require.NoError(t, err)
	assert.Equal(t, Default().Log, cfg.Log)
	assert.Equal(t, 100, cfg.Pagination.DefaultLimit)
	assert.False(t, cfg.Persistence.Enabled)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no schema":        `log: {level: info}`,
		"bad validation":   "schema: 'type A { a: Int }'\nvalidation: xml",
		"no json schemas":  "schema: 'type A { a: Int }'\nvalidation: jsonschema",
		"negative limit":   "schema: 'type A { a: Int }'\npagination: {defaultLimit: -1}",
		"bad log level":    "schema: 'type A { a: Int }'\nlog: {level: loud}",
		"malformed yaml":   "schema: [",
		"wrong value type": "schema: 'type A { a: Int }'\npagination: {defaultLimit: many}",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte("type User { name: String! }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{"type": "object"}`), 0o644))
	path := filepath.Join(dir, "capydoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schemaFile: schema.graphql
validation: jsonschema
jsonSchemas:
  User: user.json
persistence:
  enabled: true
  dir: data
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	source, err := cfg.SchemaSource()
	require.NoError(t, err)
	assert.Equal(t, "type User { name: String! }", source)

	docs, err := cfg.JSONSchemaDocuments()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"User": `{"type": "object"}`}, docs)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.Path(cfg.Persistence.Dir))
	assert.Equal(t, "/abs", cfg.Path("/abs"))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	_, err := LogConfig{Format: "xml"}.Logger()
	assert.Error(t, err)

	logger, err := LogConfig{Development: true}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
