// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package cost projects monthly spend for a subscription tier from the
// provider catalog. Estimates are pure functions of the catalog snapshot and
// the tier plan: the same inputs always produce the same projection, and
// nothing here consults breaker state or live metrics.
package cost

import (
	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// TierPlan describes the expected monthly usage shape of one tier.
type TierPlan struct {
	Tier              types.Tier `yaml:"tier" json:"tier"`
	ExpectedUsers     int64      `yaml:"expected_users" json:"expected_users"`
	TextUnitsPerUser  int64      `yaml:"text_units_per_user" json:"text_units_per_user"`
	ImageUnitsPerUser int64      `yaml:"image_units_per_user" json:"image_units_per_user"`

	// Allowances cap the billable units per user per modality. Zero means
	// uncapped.
	AllowanceTextUnits  int64 `yaml:"allowance_text_units" json:"allowance_text_units"`
	AllowanceImageUnits int64 `yaml:"allowance_image_units" json:"allowance_image_units"`
}

// Line is the projected spend through one provider for one modality.
type Line struct {
	Modality        types.Modality `json:"modality"`
	Provider        string         `json:"provider"`
	Units           int64          `json:"units"`
	UnitPriceMicros int64          `json:"unit_price_micros"`
	CostMicros      int64          `json:"cost_micros"`
}

// Projection is the full monthly estimate for one tier.
type Projection struct {
	Tier        types.Tier `json:"tier"`
	Lines       []Line     `json:"lines"`
	TotalMicros int64      `json:"total_micros"`
}

// TotalDollars formats the projected total as a dollar string.
func (p Projection) TotalDollars() string {
	return provider.FormatMicros(p.TotalMicros)
}

// Catalog is the read surface Estimate needs from the registry.
type Catalog interface {
	CandidatesFor(modality types.Modality, tier types.Tier) []provider.Descriptor
}

// Estimate projects the monthly cost of serving the plan's tier, assuming
// every request lands on the preferred (first-candidate) provider for its
// modality. Providers the tier cannot reach contribute no lines; a modality
// with zero planned units contributes no line either.
func Estimate(cat Catalog, plan TierPlan) (Projection, error) {
	if plan.Tier == "" {
		return Projection{}, kilnerrors.New(kilnerrors.CodeConfigValidateInvalidValue, "tier plan has no tier")
	}
	if plan.ExpectedUsers < 0 || plan.TextUnitsPerUser < 0 || plan.ImageUnitsPerUser < 0 {
		return Projection{}, kilnerrors.New(kilnerrors.CodeConfigValidateInvalidValue,
			"tier plan counts must be non-negative",
			kilnerrors.FieldTier(string(plan.Tier)))
	}

	proj := Projection{Tier: plan.Tier}

	type leg struct {
		modality  types.Modality
		perUser   int64
		allowance int64
	}
	for _, l := range []leg{
		{types.ModalityText, plan.TextUnitsPerUser, plan.AllowanceTextUnits},
		{types.ModalityImage, plan.ImageUnitsPerUser, plan.AllowanceImageUnits},
	} {
		perUser := l.perUser
		if l.allowance > 0 && perUser > l.allowance {
			perUser = l.allowance
		}
		units := plan.ExpectedUsers * perUser
		if units == 0 {
			continue
		}

		cands := cat.CandidatesFor(l.modality, plan.Tier)
		if len(cands) == 0 {
			return Projection{}, kilnerrors.New(kilnerrors.CodeOrchestratorNoEligibleProvider,
				"no provider serves this modality for the tier",
				kilnerrors.FieldTier(string(plan.Tier)),
				kilnerrors.FieldModality(string(l.modality)))
		}
		d := cands[0]

		proj.Lines = append(proj.Lines, Line{
			Modality:        l.modality,
			Provider:        d.ID,
			Units:           units,
			UnitPriceMicros: d.UnitPriceMicros,
			CostMicros:      units * d.UnitPriceMicros,
		})
	}

	for _, ln := range proj.Lines {
		proj.TotalMicros += ln.CostMicros
	}
	return proj, nil
}
