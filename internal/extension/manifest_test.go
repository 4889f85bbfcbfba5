package extension_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Menersar/clipcc-extension/internal/extension"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
id: net
version: 1.2.0
api: true
dependencies:
  logger: ">=1.0.0"
events:
  - player.*
lua:
  entry: main.lua
`)
	m, err := extension.ParseManifest(data)
	require.NoError(t, err)

	assert.Equal(t, "net", m.ID)
	assert.Equal(t, "1.2.0", m.Version)
	assert.True(t, m.API)
	assert.Equal(t, ">=1.0.0", m.Dependencies["logger"])
	assert.Equal(t, []string{"player.*"}, m.Events)
	require.NotNil(t, m.Lua)
	assert.Equal(t, "main.lua", m.Lua.Entry)
}

func TestParseManifest_Minimal(t *testing.T) {
	m, err := extension.ParseManifest([]byte("id: jit\nversion: 0.1.0\n"))
	require.NoError(t, err)
	assert.False(t, m.API)
	assert.Empty(t, m.Dependencies)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "bad yaml", data: "id: ["},
		{name: "missing id", data: "version: 1.0.0"},
		{name: "uppercase id", data: "id: Net\nversion: 1.0.0"},
		{name: "trailing hyphen", data: "id: net-\nversion: 1.0.0"},
		{name: "missing version", data: "id: net"},
		{name: "bad version", data: "id: net\nversion: latest"},
		{name: "bad dependency id", data: "id: net\nversion: 1.0.0\ndependencies:\n  NOPE: '*'"},
		{name: "bad dependency range", data: "id: net\nversion: 1.0.0\ndependencies:\n  logger: 'about one'"},
		{name: "lua without api", data: "id: net\nversion: 1.0.0\nlua:\n  entry: main.lua"},
		{name: "lua without entry", data: "id: net\nversion: 1.0.0\napi: true\nlua: {}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extension.ParseManifest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestManifest_Info(t *testing.T) {
	m := &extension.Manifest{
		ID:           "net",
		Version:      "1.0.0",
		API:          true,
		Dependencies: map[string]string{"logger": "*"},
		Events:       []string{"say"},
	}
	info := m.Info()

	assert.Equal(t, m.ID, info.ID)
	assert.True(t, info.API)

	// Info holds copies, not aliases.
	info.Dependencies["logger"] = "changed"
	assert.Equal(t, "*", m.Dependencies["logger"])
}
