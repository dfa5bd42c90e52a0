// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// fakeCatalog serves fixed candidate lists keyed by modality.
type fakeCatalog struct {
	byModality map[types.Modality][]provider.Descriptor
}

func (f *fakeCatalog) CandidatesFor(m types.Modality, _ types.Tier) []provider.Descriptor {
	return f.byModality[m]
}

func catalog() *fakeCatalog {
	return &fakeCatalog{byModality: map[types.Modality][]provider.Descriptor{
		types.ModalityText: {
			{ID: "openai-text", Modality: types.ModalityText, UnitPriceMicros: 1500},
			{ID: "anthropic-text", Modality: types.ModalityText, UnitPriceMicros: 1200},
		},
		types.ModalityImage: {
			{ID: "openai-image", Modality: types.ModalityImage, UnitPriceMicros: 40000},
		},
	}}
}

func TestEstimate_BothModalities(t *testing.T) {
	plan := TierPlan{
		Tier:              types.Tier("pro"),
		ExpectedUsers:     100,
		TextUnitsPerUser:  50,
		ImageUnitsPerUser: 10,
	}

	proj, err := Estimate(catalog(), plan)
	require.NoError(t, err)
	require.Len(t, proj.Lines, 2)

	text := proj.Lines[0]
	assert.Equal(t, types.ModalityText, text.Modality)
	assert.Equal(t, "openai-text", text.Provider) // first candidate, not cheapest
	assert.Equal(t, int64(5000), text.Units)
	assert.Equal(t, int64(7_500_000), text.CostMicros)

	image := proj.Lines[1]
	assert.Equal(t, "openai-image", image.Provider)
	assert.Equal(t, int64(1000), image.Units)
	assert.Equal(t, int64(40_000_000), image.CostMicros)

	assert.Equal(t, int64(47_500_000), proj.TotalMicros)
	assert.Equal(t, "$47.50", proj.TotalDollars())
}

func TestEstimate_AllowanceCapsUsage(t *testing.T) {
	plan := TierPlan{
		Tier:               types.Tier("free"),
		ExpectedUsers:      10,
		TextUnitsPerUser:   500,
		AllowanceTextUnits: 20,
	}

	proj, err := Estimate(catalog(), plan)
	require.NoError(t, err)
	require.Len(t, proj.Lines, 1)
	assert.Equal(t, int64(200), proj.Lines[0].Units)
}

func TestEstimate_SkipsZeroUsageModality(t *testing.T) {
	plan := TierPlan{
		Tier:             types.Tier("pro"),
		ExpectedUsers:    10,
		TextUnitsPerUser: 5,
	}

	proj, err := Estimate(catalog(), plan)
	require.NoError(t, err)
	require.Len(t, proj.Lines, 1)
	assert.Equal(t, types.ModalityText, proj.Lines[0].Modality)
}

func TestEstimate_NoProviderForModality(t *testing.T) {
	cat := &fakeCatalog{byModality: map[types.Modality][]provider.Descriptor{}}
	plan := TierPlan{Tier: types.Tier("pro"), ExpectedUsers: 1, TextUnitsPerUser: 1}

	_, err := Estimate(cat, plan)
	require.Error(t, err)
	assert.Equal(t, kilnerrors.CodeOrchestratorNoEligibleProvider, kilnerrors.CodeOf(err))
}

func TestEstimate_InvalidPlan(t *testing.T) {
	_, err := Estimate(catalog(), TierPlan{})
	require.Error(t, err)
	assert.True(t, kilnerrors.IsInvalidInput(err))

	_, err = Estimate(catalog(), TierPlan{Tier: "pro", ExpectedUsers: -1})
	require.Error(t, err)
	assert.True(t, kilnerrors.IsInvalidInput(err))
}

func TestEstimate_Deterministic(t *testing.T) {
	plan := TierPlan{
		Tier:              types.Tier("premium"),
		ExpectedUsers:     7,
		TextUnitsPerUser:  13,
		ImageUnitsPerUser: 3,
	}

	first, err := Estimate(catalog(), plan)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Estimate(catalog(), plan)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
