// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCmd(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/metrics": `{
			"generated_at":"2026-08-28T12:00:00Z",
			"total_attempts":10,"total_successes":8,"total_failures":2,"total_billed_units":4200,
			"providers":[{
				"provider":"openai-text","attempts":10,"successes":8,"failures":2,
				"failures_by_kind":{"timeout":2},
				"avg_latency_ms":120,"p95_latency_ms":300,"billed_units":4200
			}]
		}`,
	})

	out, err := executeCommand(t, nil, "metrics", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Attempts: 10 (8 ok, 2 failed)")
	assert.Contains(t, out, "openai-text")
	assert.Contains(t, out, "p95=300ms")
	assert.Contains(t, out, "timeout: 2")
}

func TestMetricsClearCmd(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/metrics": `{"status":"cleared"}`,
	})

	out, err := executeCommand(t, nil, "metrics", "clear", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Metrics cleared: cleared")
}
