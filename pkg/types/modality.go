// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package types

import (
	"strings"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// Modality is the kind of content a provider generates.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Valid reports whether m is a recognized modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityImage:
		return true
	default:
		return false
	}
}

// ParseModality parses a case-insensitive string into a Modality.
func ParseModality(s string) (Modality, error) {
	m := Modality(strings.ToLower(s))
	if !m.Valid() {
		return "", kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"invalid modality: %q", s)
	}
	return m, nil
}
