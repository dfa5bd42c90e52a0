// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kiln-dev/kiln/internal/provider"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
providers:
  - id: openai-text
    kind: openai
    modality: text
    model: gpt-4.1-mini
    unit_price_micros: 2
    priority: 1
    tiers: [pro, premium]
    credential_env: OPENAI_API_KEY
  - id: google-image
    kind: google
    modality: image
    model: imagen-4.0
    unit_price_micros: 40000
    priority: 1
    tiers: [free, pro, premium]
    credential_env: GEMINI_API_KEY
    endpoint: https://example.invalid
`

func TestParseCatalog(t *testing.T) {
	descs, err := provider.ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, "openai-text", descs[0].ID)
	assert.Equal(t, types.ModalityText, descs[0].Modality)
	assert.Equal(t, []types.Tier{"pro", "premium"}, descs[0].Tiers)
	assert.Equal(t, int64(2), descs[0].UnitPriceMicros)

	assert.Equal(t, "google-image", descs[1].ID)
	assert.Equal(t, "https://example.invalid", descs[1].Endpoint)
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, err := provider.ParseCatalog([]byte("providers: [not: valid"))
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeConfigParseInvalidFormat, kilnerr.CodeOf(err))
}

func TestParseCatalog_EmptyDocument(t *testing.T) {
	_, err := provider.ParseCatalog([]byte("providers: []"))
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeConfigParseInvalidFormat, kilnerr.CodeOf(err))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	descs, err := provider.LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := provider.LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeConfigLoadReadFailure, kilnerr.CodeOf(err))
}
