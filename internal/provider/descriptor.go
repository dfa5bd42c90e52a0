// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider

import (
	"fmt"
	"slices"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// Adapter kinds understood by the built-in adapter constructors.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGoogle    = "google"
)

// Descriptor is the immutable catalog entry for one configured provider.
// Descriptors are loaded once (or swapped wholesale on reload) and never
// mutated in place.
type Descriptor struct {
	// ID uniquely names this provider entry, e.g. "openai-text".
	ID string `yaml:"id"`
	// Kind selects the adapter implementation: openai, anthropic, google.
	Kind string `yaml:"kind"`
	// Modality this entry serves: text or image.
	Modality types.Modality `yaml:"modality"`
	// Model is the upstream model identifier the adapter invokes.
	Model string `yaml:"model"`
	// UnitPriceMicros is the cost per billed unit in micro-USD (1e-6 USD).
	// Integer micros avoid floating-point rounding in cost arithmetic.
	UnitPriceMicros int64 `yaml:"unit_price_micros"`
	// Priority orders same-modality candidates; lower is tried first.
	Priority int `yaml:"priority"`
	// Tiers lists the subscription tiers permitted to use this provider.
	Tiers []types.Tier `yaml:"tiers"`
	// CredentialEnv names the environment variable (and keyring key) that
	// must resolve for this provider to be considered live.
	CredentialEnv string `yaml:"credential_env"`
	// Endpoint overrides the upstream base URL; empty means the SDK default.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// EligibleFor reports whether the given tier may use this provider.
func (d Descriptor) EligibleFor(tier types.Tier) bool {
	return slices.Contains(d.Tiers, tier)
}

// Validate checks the descriptor for logical errors.
func (d Descriptor) Validate() []error {
	var errs []error

	if d.ID == "" {
		errs = append(errs, kilnerr.New(kilnerr.CodeConfigValidateInvalidValue,
			"provider descriptor: id must not be empty"))
	}

	switch d.Kind {
	case KindOpenAI, KindAnthropic, KindGoogle:
	default:
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: kind must be one of [openai, anthropic, google], got %q", d.ID, d.Kind))
	}

	if !d.Modality.Valid() {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: modality must be one of [text, image], got %q", d.ID, d.Modality))
	}

	if d.Model == "" {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: model must not be empty", d.ID))
	}

	if d.UnitPriceMicros < 0 {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: unit_price_micros must be non-negative, got %d", d.ID, d.UnitPriceMicros))
	}

	if d.Priority < 0 {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: priority must be non-negative, got %d", d.ID, d.Priority))
	}

	if len(d.Tiers) == 0 {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: at least one tier must be listed", d.ID))
	}

	if d.CredentialEnv == "" {
		errs = append(errs, kilnerr.Errorf(kilnerr.CodeConfigValidateInvalidValue,
			"provider %s: credential_env must not be empty", d.ID))
	}

	return errs
}

// FormatMicros formats a micro-USD value as a USD string (e.g. 5_000_000 → "$5.00").
func FormatMicros(micros int64) string {
	sign := ""
	if micros < 0 {
		sign = "-"
		micros = -micros
	}
	return fmt.Sprintf("%s$%d.%02d", sign, micros/1_000_000, (micros%1_000_000)/10_000)
}
