// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

package extension_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Menersar/clipcc-extension/internal/extension"
)

func TestGenerateSchema(t *testing.T) {
	data, err := extension.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, extension.SchemaID, schema["$id"])
	assert.Equal(t, "ClipCC Extension Manifest", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema must declare properties")
	for _, name := range []string{"id", "version", "dependencies", "api", "events", "lua"} {
		assert.Contains(t, props, name)
	}
}

func TestValidateSchema_Valid(t *testing.T) {
	extension.ResetSchemaCache()

	manifest := []byte(`
id: vision
version: 2.1.0
api: true
dependencies:
  core-api: "^1.0.0"
events:
  - project.loaded
lua:
  entry: main.lua
`)
	assert.NoError(t, extension.ValidateSchema(manifest))
}

func TestValidateSchema_Minimal(t *testing.T) {
	assert.NoError(t, extension.ValidateSchema([]byte("id: vision\nversion: 1.0.0\n")))
}

func TestValidateSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing id", data: "version: 1.0.0\n"},
		{name: "missing version", data: "id: vision\n"},
		{name: "wrong type for api", data: "id: vision\nversion: 1.0.0\napi: \"yes\"\n"},
		{name: "wrong type for events", data: "id: vision\nversion: 1.0.0\nevents: project.loaded\n"},
		{name: "wrong type for dependencies", data: "id: vision\nversion: 1.0.0\ndependencies: [core-api]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, extension.ValidateSchema([]byte(tt.data)))
		})
	}
}

func TestValidateSchema_EmptyAndMalformed(t *testing.T) {
	assert.Error(t, extension.ValidateSchema(nil))
	assert.Error(t, extension.ValidateSchema([]byte(": not yaml [")))
}

func TestValidateSchema_CachesCompiledSchema(t *testing.T) {
	extension.ResetSchemaCache()
	manifest := []byte("id: vision\nversion: 1.0.0\n")
	require.NoError(t, extension.ValidateSchema(manifest))
	// Second run hits the cached schema.
	assert.NoError(t, extension.ValidateSchema(manifest))
}
