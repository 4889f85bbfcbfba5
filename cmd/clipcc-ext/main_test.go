// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns its
// combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// writeExtensionDir creates an extensions directory containing the given
// manifests, keyed by extension id.
func writeExtensionDir(t *testing.T, manifests map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for id, manifest := range manifests {
		dir := filepath.Join(root, id)
		require.NoError(t, os.MkdirAll(dir, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "extension.yaml"), []byte(manifest), 0o600))
	}
	return root
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := runCommand(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"list", "plan", "validate", "serve"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/clipcc.yaml", "--help"},
			wantFlag: "/etc/clipcc.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_LongDescription(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "clipcc-ext", cmd.Use)
	assert.Contains(t, cmd.Long, "dependency-ordered")
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}
