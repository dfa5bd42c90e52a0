// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/kiln-dev/kiln/internal/config"
	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/internal/secrets"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, configuration, the provider catalog, credential availability, gateway reachability, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", defaultGatewayAddr, "gateway address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Gateway", func() string { return checkGateway(addr) }},
		{"Config", checkConfig},
		{"Catalog", checkCatalog},
		{"Credentials", checkCredentials},
		{"Disk Space", checkDiskSpace},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-14s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("kiln %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkGateway(addr string) string {
	gw := newGatewayClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := gw.getJSON("/api/v1/status", &body); err != nil {
		if kilnerr.HasCode(err, kilnerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'kiln serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		return "using defaults (no config file found)"
	}
	if _, err := config.Load(cfgFile); err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	return fmt.Sprintf("loaded from %s", cfgFile)
}

func checkCatalog() string {
	path := catalogPath()
	descs, err := provider.LoadCatalog(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Sprintf("no catalog at %s (run 'kiln init')", path)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%d provider(s) in %s", len(descs), path)
}

func checkCredentials() string {
	descs, err := provider.LoadCatalog(catalogPath())
	if err != nil {
		return "skipped (no catalog)"
	}

	resolver := secrets.NewResolver(secrets.NewKeyringStore())
	var missing []string
	for _, d := range descs {
		if !resolver.Available(d.CredentialEnv) {
			missing = append(missing, d.ID)
		}
	}

	if len(missing) == 0 {
		return fmt.Sprintf("all %d provider credential(s) resolve", len(descs))
	}
	return fmt.Sprintf("missing for: %s", strings.Join(missing, ", "))
}

// catalogPath resolves the provider catalog location from the loaded
// config, falling back to the config default.
func catalogPath() string {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return "providers.yaml"
	}
	return cfg.Catalog.Path
}

func checkDiskSpace() string {
	path := "."
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		path = filepath.Dir(cfgFile)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
