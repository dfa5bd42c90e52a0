// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Check the running gateway's status endpoint and display catalog and circuit summary.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var body struct {
		Status       string `json:"status"`
		Providers    int    `json:"providers"`
		OpenCircuits int    `json:"open_circuits"`
	}
	if err := gw.getJSON("/api/v1/status", &body); err != nil {
		if kilnerr.HasCode(err, kilnerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, body.Status)
	_, _ = fmt.Fprintf(out, "  providers:     %d\n", body.Providers)
	_, _ = fmt.Fprintf(out, "  open circuits: %d\n", body.OpenCircuits)
	return nil
}
