// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Menersar/clipcc-extension/pkg/errutil"
)

func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestLogError_PlainError(t *testing.T) {
	logger, buf := jsonLogger()

	errutil.LogError(logger, "load failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "load failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "code")
}

func TestLogError_OopsError(t *testing.T) {
	logger, buf := jsonLogger()

	err := oops.Code("UNAVAILABLE_EXTENSION").With("extension", "vision").Errorf("not registered")
	errutil.LogError(logger, "load failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "UNAVAILABLE_EXTENSION", entry["code"])

	ctx, ok := entry["context"].(map[string]any)
	require.True(t, ok, "context must be logged as a group")
	assert.Equal(t, "vision", ctx["extension"])
}

func TestCode(t *testing.T) {
	assert.Equal(t, "CIRCULAR_REQUIREMENT",
		errutil.Code(oops.Code("CIRCULAR_REQUIREMENT").New("cycle")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
	assert.Empty(t, errutil.Code(oops.New("no code")))
}
