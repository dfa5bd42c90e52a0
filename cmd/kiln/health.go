// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kiln-dev/kiln/pkg/health"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show per-provider circuit breaker state",
		RunE:  runHealth,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to query")

	cmd.AddCommand(newHealthResetCmd())

	return cmd
}

func newHealthResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <provider-id>",
		Short: "Reset one provider's circuit breaker to closed",
		Args:  cobra.ExactArgs(1),
		RunE:  runHealthReset,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to query")

	return cmd
}

func runHealth(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var body struct {
		Providers map[string]health.State `json:"providers"`
	}
	if err := gw.getJSON("/api/v1/providers/health", &body); err != nil {
		return err
	}

	if len(body.Providers) == 0 {
		_, _ = fmt.Fprintln(out, "No providers configured.")
		return nil
	}

	ids := make([]string, 0, len(body.Providers))
	for id := range body.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := body.Providers[id]
		line := fmt.Sprintf("%-24s %-9s failures=%d trips=%d", id, st.Status, st.ConsecutiveFailures, st.Trips)
		if st.CooldownUntil != nil {
			line += fmt.Sprintf(" cooldown_until=%s", st.CooldownUntil.Format("15:04:05"))
		}
		if st.TrialInFlight {
			line += " trial_in_flight"
		}
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}

func runHealthReset(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	id := args[0]

	gw := newGatewayClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := gw.postJSON("/api/v1/providers/"+id+"/health/reset", &body); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset circuit for %s: %s\n", id, body.Status)
	return nil
}
