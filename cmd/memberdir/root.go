// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the MemberDir CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memberdir",
		Short: "MemberDir - membership directory server",
		Long: `MemberDir serves a membership directory: member accounts with
password login, per-member profiles, and an administrator dashboard.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
