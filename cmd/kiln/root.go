// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiln-dev/kiln/internal/config"
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// NewRootCmd creates the root kiln command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kiln",
		Short:         "Kiln — content-generation gateway",
		Long:          "Kiln routes text and image generation requests to interchangeable providers by subscription tier, priority, and circuit health.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newStatusCmd(),
		newHealthCmd(),
		newMetricsCmd(),
		newEstimateCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper so config discovery and the standard
// precedence (flag > env > file > defaults) are handled uniformly. The
// actual typed configuration is built by config.Load from the discovered
// file; the global Viper only tracks which file is in use and the
// persistent flags.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return kilnerr.Errorf(kilnerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover kiln.yaml from standard locations.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./kiln binary in the project root.
		v.SetConfigName("kiln")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/kiln")
		v.AddConfigPath("/etc/kiln")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return kilnerr.Errorf(kilnerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to ~/.config/kiln/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return kilnerr.Errorf(kilnerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
