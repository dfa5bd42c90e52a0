// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiln-dev/kiln/internal/config"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// sampleCatalogYAML is the starter provider catalog written by kiln init.
// Entries are commented examples; kiln serve needs at least one
// uncommented provider with a resolvable credential.
const sampleCatalogYAML = `# Kiln provider catalog.
# Each entry maps one upstream model to a modality, price, priority, and
# tier eligibility. Lower priority is tried first; ties break on price.
# Credentials resolve from the named environment variable, falling back to
# the OS keyring ('kiln secret set <name>').
providers:
  - id: openai-text
    kind: openai
    modality: text
    model: gpt-4o-mini
    unit_price_micros: 2
    priority: 1
    tiers: [free, pro, premium]
    credential_env: OPENAI_API_KEY

  - id: anthropic-text
    kind: anthropic
    modality: text
    model: claude-sonnet-4-5
    unit_price_micros: 3
    priority: 2
    tiers: [pro, premium]
    credential_env: ANTHROPIC_API_KEY

  - id: google-text
    kind: google
    modality: text
    model: gemini-2.0-flash
    unit_price_micros: 1
    priority: 3
    tiers: [free, pro, premium]
    credential_env: GEMINI_API_KEY

  - id: openai-image
    kind: openai
    modality: image
    model: gpt-image-1
    unit_price_micros: 40000
    priority: 1
    tiers: [premium]
    credential_env: OPENAI_API_KEY
`

// configPathForWrite returns the target config path. Exported as a
// variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration and provider catalog",
		Long: `Write a commented default kiln.yaml and a sample providers.yaml.

Credentials are never written to disk: each catalog entry names an
environment variable, which can also be satisfied from the OS keyring via
'kiln secret set'. After editing the catalog, run:
  kiln doctor   — verify config, catalog, and credentials
  kiln serve    — start the gateway`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	cfgPath, err := configPathForWrite()
	if err != nil {
		return err
	}
	catalogFile := filepath.Join(filepath.Dir(cfgPath), "providers.yaml")

	if err := writeInitFile(cfgPath, config.DefaultConfigYAML, force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote config:  %s\n", cfgPath)

	if err := writeInitFile(catalogFile, []byte(sampleCatalogYAML), force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote catalog: %s\n", catalogFile)

	_, _ = fmt.Fprintln(out, "\nEdit the catalog, store credentials with 'kiln secret set', then run 'kiln doctor'.")
	return nil
}

// writeInitFile writes content to path with restrictive permissions,
// refusing to clobber an existing file unless force is set.
func writeInitFile(path string, content []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return kilnerr.Errorf(kilnerr.CodeCLIInputInvalid,
				"%s already exists; use --force to overwrite", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLISetupFailure,
			"creating directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLISetupFailure,
			"writing %s: %w", path, err)
	}
	return nil
}
