// Package config loads the YAML configuration of an embedded store.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	// ValidationGraphQL validates entities against the GraphQL schema types.
	ValidationGraphQL = "graphql"
	// ValidationJSONSchema validates entities against per-collection JSON Schema documents.
	ValidationJSONSchema = "jsonschema"
)

// Config is the root configuration.
type Config struct {
	// Schema is the inline GraphQL SDL.
	Schema string `yaml:"schema,omitempty"`
	// SchemaFile is the path of a GraphQL SDL file, used when Schema is empty.
	SchemaFile string `yaml:"schemaFile,omitempty"`
	// Validation selects the validator: graphql or jsonschema.
	Validation string `yaml:"validation,omitempty"`
	// JSONSchemas maps collection names to JSON Schema file paths.
	JSONSchemas map[string]string `yaml:"jsonSchemas,omitempty"`
	// Log configures the logger.
	Log LogConfig `yaml:"log"`
	// Pagination configures the read path.
	Pagination PaginationConfig `yaml:"pagination"`
	// Persistence configures the content addressed persistence recorder.
	Persistence PersistenceConfig `yaml:"persistence"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`
	// Format is json or console.
	Format string `yaml:"format,omitempty"`
	// Development enables development mode (stack traces on warnings, panics on DPanic).
	Development bool `yaml:"development,omitempty"`
}

// PaginationConfig configures page sizes.
type PaginationConfig struct {
	DefaultLimit int `yaml:"defaultLimit,omitempty"`
}

// PersistenceConfig configures the persistence recorder.
type PersistenceConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Dir stores blocks on disk. Blocks are kept in memory when empty.
	Dir string `yaml:"dir,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Validation: ValidationGraphQL,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 100,
		},
	}
}

// Load reads the configuration file at the given path.
//
// Environment variables in the file are expanded and relative paths are
// resolved against the directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse parses the configuration from raw YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Schema == "" && c.SchemaFile == "" {
		return fmt.Errorf("config: schema or schemaFile is required")
	}
	switch c.Validation {
	case "", ValidationGraphQL:
	case ValidationJSONSchema:
		if len(c.JSONSchemas) == 0 {
			return fmt.Errorf("config: jsonschema validation requires jsonSchemas")
		}
	default:
		return fmt.Errorf("config: unknown validation %q", c.Validation)
	}
	if c.Pagination.DefaultLimit < 0 {
		return fmt.Errorf("config: pagination.defaultLimit must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Path resolves a path from the configuration file.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// SchemaSource returns the GraphQL SDL from the inline schema or schema file.
func (c *Config) SchemaSource() (string, error) {
	if c.Schema != "" {
		return c.Schema, nil
	}
	data, err := os.ReadFile(c.Path(c.SchemaFile))
	if err != nil {
		return "", fmt.Errorf("reading schema file: %w", err)
	}
	return string(data), nil
}

// JSONSchemaDocuments reads the JSON Schema document of every collection.
func (c *Config) JSONSchemaDocuments() (map[string]string, error) {
	out := make(map[string]string, len(c.JSONSchemas))
	for name, p := range c.JSONSchemas {
		data, err := os.ReadFile(c.Path(p))
		if err != nil {
			return nil, fmt.Errorf("reading json schema for %s: %w", name, err)
		}
		out[name] = string(data)
	}
	return out, nil
}

// Logger builds the zap logger described by the log configuration.
func (c LogConfig) Logger() (*zap.Logger, error) {
	z := zap.NewProductionConfig()
	if c.Development {
		z = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		z.Level = zap.NewAtomicLevelAt(level)
	}
	switch c.Format {
	case "":
	case "json", "console":
		z.Encoding = c.Format
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	z.OutputPaths = []string{"stderr"}
	logger, err := z.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
