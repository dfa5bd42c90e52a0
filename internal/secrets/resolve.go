// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package secrets

import (
	"os"

	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

// Resolver resolves provider credentials named by environment variable.
// The environment wins over the keyring so a process-level override never
// requires rewriting stored secrets.
type Resolver struct {
	store Store
	// lookupEnv is swappable for tests; defaults to os.LookupEnv.
	lookupEnv func(string) (string, bool)
}

// NewResolver builds a Resolver over a Store. A nil store resolves from the
// environment only.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, lookupEnv: os.LookupEnv}
}

// Credential resolves the credential named by envName.
func (r *Resolver) Credential(envName string) (string, error) {
	if envName == "" {
		return "", kilnerrors.New(kilnerrors.CodeSecretInvalidInput,
			"credential name must not be empty")
	}
	if v, ok := r.lookupEnv(envName); ok && v != "" {
		return v, nil
	}
	if r.store != nil {
		v, err := r.store.Retrieve(Service, envName)
		if err == nil && v != "" {
			return v, nil
		}
		if err != nil && !kilnerrors.HasCode(err, kilnerrors.CodeSecretNotFound) {
			return "", err
		}
	}
	return "", kilnerrors.New(kilnerrors.CodeProviderCredentialMissing,
		"credential not set in environment or keyring: "+envName)
}

// Available reports whether the credential resolves. It backs the registry's
// liveness predicate, so it must never block on user interaction; keyring
// prompts are the store's concern.
func (r *Resolver) Available(envName string) bool {
	_, err := r.Credential(envName)
	return err == nil
}
