// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phonepass/phonepass/internal/config"
	"github.com/phonepass/phonepass/internal/logging"
	"github.com/phonepass/phonepass/internal/xdg"
)

const serviceName = "phonepass"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the phonepass CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phonepass",
		Short: "phonepass - phone number authentication",
		Long: `phonepass authenticates users by phone number with one-time SMS
verification codes or passwords, escalating to CAPTCHA and account lockout
after repeated password failures.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/phonepass/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSendCodeCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the configuration for cmd and builds its logger. Without
// --config the XDG config file is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := configFile
	if path == "" {
		defaultPath, exists, err := xdg.ConfigFile()
		if err != nil {
			return nil, nil, err
		}
		if exists {
			path = defaultPath
		}
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr())
	return cfg, logger, nil
}
