// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	data map[string]string // "service/key" -> value
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Store(service, key, value string) error {
	m.data[service+"/"+key] = value
	return nil
}

func (m *memStore) Retrieve(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", kilnerrors.Errorf(kilnerrors.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *memStore) Delete(service, key string) error {
	delete(m.data, service+"/"+key)
	return nil
}

func (m *memStore) List(service string) ([]string, error) {
	var keys []string
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestResolver_EnvWinsOverKeyring(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Store(Service, "OPENAI_API_KEY", "from-keyring"))

	r := NewResolver(store)
	r.lookupEnv = func(name string) (string, bool) {
		if name == "OPENAI_API_KEY" {
			return "from-env", true
		}
		return "", false
	}

	v, err := r.Credential("OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestResolver_FallsBackToKeyring(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Store(Service, "ANTHROPIC_API_KEY", "from-keyring"))

	r := NewResolver(store)
	r.lookupEnv = func(string) (string, bool) { return "", false }

	v, err := r.Credential("ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", v)
}

func TestResolver_Missing(t *testing.T) {
	r := NewResolver(newMemStore())
	r.lookupEnv = func(string) (string, bool) { return "", false }

	_, err := r.Credential("GEMINI_API_KEY")
	require.Error(t, err)
	assert.Equal(t, kilnerrors.CodeProviderCredentialMissing, kilnerrors.CodeOf(err))
	assert.False(t, r.Available("GEMINI_API_KEY"))
}

func TestResolver_NilStore(t *testing.T) {
	r := NewResolver(nil)
	r.lookupEnv = func(name string) (string, bool) { return "x", name == "SET" }

	assert.True(t, r.Available("SET"))
	assert.False(t, r.Available("UNSET"))
}

func TestResolver_EmptyName(t *testing.T) {
	_, err := NewResolver(nil).Credential("")
	require.Error(t, err)
	assert.True(t, kilnerrors.IsInvalidInput(err))
}
