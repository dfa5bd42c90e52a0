// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiln-dev/kiln/internal/cost"
	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/pkg/types"
)

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <tier>",
		Short: "Show the projected monthly provider cost for a tier",
		Args:  cobra.ExactArgs(1),
		RunE:  runEstimate,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to query")

	return cmd
}

func runEstimate(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	tier := string(types.NormalizeTier(args[0]))
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var body struct {
		Tier        types.Tier  `json:"tier"`
		Lines       []cost.Line `json:"lines"`
		TotalMicros int64       `json:"total_micros"`
		Total       string      `json:"total"`
	}
	if err := gw.getJSON("/api/v1/cost/"+tier, &body); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Projected monthly cost for tier %s:\n", body.Tier)
	for _, l := range body.Lines {
		_, _ = fmt.Fprintf(out, "  %-6s via %-24s %d units @ %d micros = %s\n",
			l.Modality, l.Provider, l.Units, l.UnitPriceMicros,
			provider.FormatMicros(l.CostMicros))
	}
	_, _ = fmt.Fprintf(out, "  total: %s\n", body.Total)
	return nil
}
