// Package test contains YAML scripted cases that exercise a store through
// its GraphQL surface.
package test

import (
	"embed"
	"io/fs"
	"path/filepath"

	"github.com/nasdf/capydoc/graphql"

	"gopkg.in/yaml.v3"
)

//go:embed cases
var casesFS embed.FS

type TestCase struct {
	// Description is a simple description for the test case.
	Description string `yaml:"description"`
	// Schema is the GraphQL schema used to open the store.
	Schema string `yaml:"schema"`
	// Operations is a list of all GraphQL operations to run in this test case.
	Operations []Operation `yaml:"operations"`
}

type Operation struct {
	// Params contains the GraphQL parameters for this operation.
	Params graphql.QueryParams `yaml:"params"`
	// Response contains the expected GraphQL response.
	Response Response `yaml:"response"`
}

// Response is the expected outcome of an operation.
//
// Errors are matched by kind, and by message when one is given.
type Response struct {
	Data   any             `yaml:"data"`
	Errors []ExpectedError `yaml:"errors"`
}

type ExpectedError struct {
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// TestCasePaths returns a list of all test case file paths.
func TestCasePaths() (paths []string, _ error) {
	return paths, fs.WalkDir(casesFS, "cases", func(path string, d fs.DirEntry, err error) error {
		if filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return err
	})
}

// LoadTestCase loads and parses a test case file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := fs.ReadFile(casesFS, path)
	if err != nil {
		return nil, err
	}
	var testCase TestCase
	if err := yaml.Unmarshal(data, &testCase); err != nil {
		return nil, err
	}
	return &testCase, nil
}
