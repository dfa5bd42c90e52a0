// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCmd(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/providers/health": `{"providers":{
			"openai-text":{"status":"closed","consecutive_failures":0,"trips":0},
			"google-text":{"status":"open","consecutive_failures":3,"trips":1,"cooldown_until":"2026-08-28T12:00:00Z"}
		}}`,
	})

	out, err := executeCommand(t, nil, "health", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "openai-text")
	assert.Contains(t, out, "closed")
	assert.Contains(t, out, "google-text")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "cooldown_until=")
}

func TestHealthCmd_Empty(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/providers/health": `{"providers":{}}`,
	})

	out, err := executeCommand(t, nil, "health", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "No providers configured.")
}

func TestHealthResetCmd(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/providers/openai-text/health/reset": `{"status":"reset"}`,
	})

	out, err := executeCommand(t, nil, "health", "reset", "openai-text", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset circuit for openai-text: reset")
}

func TestHealthResetCmd_RequiresArg(t *testing.T) {
	_, err := executeCommand(t, nil, "health", "reset")
	require.Error(t, err)
}
