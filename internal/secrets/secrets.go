// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package secrets stores and resolves provider API credentials. Resolution
// order is environment variable first, then the OS keyring under the kiln
// service, so operators can override stored keys per process without
// touching the keyring.
package secrets

// Service is the keyring service name kiln stores credentials under.
const Service = "kiln"

// Store is secure credential storage. Implementations may back onto OS
// keyrings or encrypted files.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// A missing key yields CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// A missing key yields CodeSecretNotFound.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}
