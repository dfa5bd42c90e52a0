// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiln-dev/kiln/internal/metrics"
)

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show aggregated attempt metrics",
		RunE:  runMetrics,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to query")

	cmd.AddCommand(newMetricsClearCmd())

	return cmd
}

func newMetricsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard all recorded metrics",
		RunE:  runMetricsClear,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to query")

	return cmd
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var rep metrics.Report
	if err := gw.getJSON("/api/v1/metrics", &rep); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Attempts: %d (%d ok, %d failed)  billed units: %d\n",
		rep.TotalAttempts, rep.TotalSuccesses, rep.TotalFailures, rep.TotalBilled)

	for _, p := range rep.Providers {
		_, _ = fmt.Fprintf(out, "%-24s attempts=%-6d ok=%-6d avg=%dms p95=%dms billed=%d\n",
			p.Provider, p.Attempts, p.Successes, p.AvgLatencyMS, p.P95LatencyMS, p.BilledUnits)
		for kind, n := range p.FailuresByKind {
			_, _ = fmt.Fprintf(out, "    %s: %d\n", kind, n)
		}
	}
	return nil
}

func runMetricsClear(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")

	gw := newGatewayClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := gw.deleteJSON("/api/v1/metrics", &body); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Metrics cleared: %s\n", body.Status)
	return nil
}
