// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider_test

import (
	"context"

	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/pkg/types"
)

// fakeAdapter is a canned-response adapter for registry tests.
type fakeAdapter struct {
	id     string
	result *provider.Result
	err    error
	closed bool
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Invoke(_ context.Context, _ provider.Invocation) (*provider.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

// desc builds a minimal valid text descriptor for tests.
func desc(id string, priority int, priceMicros int64, tiers ...types.Tier) provider.Descriptor {
	if len(tiers) == 0 {
		tiers = []types.Tier{"free", "pro", "premium"}
	}
	return provider.Descriptor{
		ID:              id,
		Kind:            provider.KindOpenAI,
		Modality:        types.ModalityText,
		Model:           "gpt-4.1-mini",
		UnitPriceMicros: priceMicros,
		Priority:        priority,
		Tiers:           tiers,
		CredentialEnv:   "OPENAI_API_KEY",
	}
}

func imageDesc(id string, priority int, priceMicros int64, tiers ...types.Tier) provider.Descriptor {
	d := desc(id, priority, priceMicros, tiers...)
	d.Modality = types.ModalityImage
	d.Model = "gpt-image-1"
	return d
}
