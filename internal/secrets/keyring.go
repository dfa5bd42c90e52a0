// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

// keysIndexSuffix forms the key that holds a JSON index of stored key names
// per service. go-keyring cannot enumerate keys, so List reads this index.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := requireServiceKey("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return kilnerrors.Wrapf(err, kilnerrors.CodeSecretStoreFailure,
			"storing secret %s/%s", service, key)
	}
	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := requireServiceKey("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", kilnerrors.Errorf(kilnerrors.CodeSecretNotFound,
				"secret %s/%s not found", service, key)
		}
		return "", kilnerrors.Wrapf(err, kilnerrors.CodeSecretStoreFailure,
			"retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := requireServiceKey("delete", service, key); err != nil {
		return err
	}
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return kilnerrors.Errorf(kilnerrors.CodeSecretNotFound,
				"secret %s/%s not found", service, key)
		}
		return kilnerrors.Wrapf(err, kilnerrors.CodeSecretDeleteFailure,
			"deleting secret %s/%s", service, key)
	}
	return s.removeFromIndex(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func requireServiceKey(op, service, key string) error {
	if service == "" {
		return kilnerrors.Errorf(kilnerrors.CodeSecretInvalidInput,
			"secret %s: service must not be empty", op)
	}
	if key == "" {
		return kilnerrors.Errorf(kilnerrors.CodeSecretInvalidInput,
			"secret %s: key must not be empty", op)
	}
	return nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, kilnerrors.Wrapf(err, kilnerrors.CodeSecretListFailure,
			"loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, kilnerrors.Wrapf(err, kilnerrors.CodeSecretListFailure,
			"decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return kilnerrors.Wrapf(err, kilnerrors.CodeSecretListFailure,
			"encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return kilnerrors.Wrapf(err, kilnerrors.CodeSecretListFailure,
			"saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}
