// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-dev/kiln/internal/secrets"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// memSecretStore is an in-memory secrets.Store for command tests.
type memSecretStore struct {
	values map[string]string
}

func newMemSecretStore() *memSecretStore {
	return &memSecretStore{values: map[string]string{}}
}

func (m *memSecretStore) Store(service, key, value string) error {
	m.values[service+"/"+key] = value
	return nil
}

func (m *memSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.values[service+"/"+key]
	if !ok {
		return "", kilnerr.New(kilnerr.CodeSecretNotFound, "secret not found")
	}
	return v, nil
}

func (m *memSecretStore) Delete(service, key string) error {
	if _, ok := m.values[service+"/"+key]; !ok {
		return kilnerr.New(kilnerr.CodeSecretNotFound, "secret not found")
	}
	delete(m.values, service+"/"+key)
	return nil
}

func (m *memSecretStore) List(service string) ([]string, error) {
	var keys []string
	for k := range m.values {
		if name, ok := strings.CutPrefix(k, service+"/"); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

// withMemSecretStore swaps the store factory for the test's lifetime.
func withMemSecretStore(t *testing.T) *memSecretStore {
	t.Helper()
	mem := newMemSecretStore()
	prev := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mem }
	t.Cleanup(func() { secretStoreFactory = prev })
	return mem
}

func TestSecretSetCmd(t *testing.T) {
	mem := withMemSecretStore(t)

	out, err := executeCommand(t, strings.NewReader("sk-test-123\n"), "secret", "set", "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored secret: OPENAI_API_KEY")
	assert.Equal(t, "sk-test-123", mem.values[secrets.Service+"/OPENAI_API_KEY"])
}

func TestSecretSetCmd_EmptyValue(t *testing.T) {
	withMemSecretStore(t)

	_, err := executeCommand(t, strings.NewReader("\n"), "secret", "set", "OPENAI_API_KEY")
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeCLIInputInvalid, kilnerr.CodeOf(err))
}

func TestSecretListCmd(t *testing.T) {
	mem := withMemSecretStore(t)
	require.NoError(t, mem.Store(secrets.Service, "OPENAI_API_KEY", "x"))

	out, err := executeCommand(t, nil, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "OPENAI_API_KEY")
}

func TestSecretListCmd_Empty(t *testing.T) {
	withMemSecretStore(t)

	out, err := executeCommand(t, nil, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")
}

func TestSecretDeleteCmd(t *testing.T) {
	mem := withMemSecretStore(t)
	require.NoError(t, mem.Store(secrets.Service, "OPENAI_API_KEY", "x"))

	out, err := executeCommand(t, nil, "secret", "delete", "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: OPENAI_API_KEY")
	assert.Empty(t, mem.values)
}

func TestSecretDeleteCmd_NotFound(t *testing.T) {
	withMemSecretStore(t)

	_, err := executeCommand(t, nil, "secret", "delete", "MISSING")
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeSecretNotFound, kilnerr.CodeOf(err))
}
