// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-dev/kiln/internal/config"
	"github.com/kiln-dev/kiln/internal/provider"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// withInitTarget redirects init's config path to a temp directory.
func withInitTarget(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := configPathForWrite
	configPathForWrite = func() (string, error) {
		return filepath.Join(dir, "kiln.yaml"), nil
	}
	t.Cleanup(func() { configPathForWrite = prev })
	return dir
}

func TestInitCmd_WritesConfigAndCatalog(t *testing.T) {
	dir := withInitTarget(t)

	out, err := executeCommand(t, nil, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote config:")
	assert.Contains(t, out, "Wrote catalog:")

	cfgPath := filepath.Join(dir, "kiln.yaml")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8780", cfg.Server.Listen)
	// Relative catalog path resolves beside the config file.
	assert.Equal(t, filepath.Join(dir, "providers.yaml"), cfg.Catalog.Path)

	descs, err := provider.LoadCatalog(cfg.Catalog.Path)
	require.NoError(t, err)
	require.NotEmpty(t, descs)
	for _, d := range descs {
		assert.Empty(t, d.Validate(), "sample descriptor %s must validate", d.ID)
	}
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	dir := withInitTarget(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("keep"), 0o600))

	_, err := executeCommand(t, nil, "init")
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeCLIInputInvalid, kilnerr.CodeOf(err))

	// Existing file untouched.
	data, err := os.ReadFile(filepath.Join(dir, "kiln.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	dir := withInitTarget(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("old"), 0o600))

	_, err := executeCommand(t, nil, "init", "--force")
	require.NoError(t, err)

	_, err = config.Load(filepath.Join(dir, "kiln.yaml"))
	require.NoError(t, err)
}

func TestInitCmd_FilePermissions(t *testing.T) {
	dir := withInitTarget(t)

	_, err := executeCommand(t, nil, "init")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "kiln.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
