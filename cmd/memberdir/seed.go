// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/memberdir/memberdir/internal/auth"
	authpg "github.com/memberdir/memberdir/internal/auth/postgres"
	"github.com/memberdir/memberdir/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	username string
	email    string
	timeout  time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial administrator account",
		Long: `Creates the first administrator account so the dashboard is reachable
on a fresh database. The password comes from the MEMBERDIR_ADMIN_PASSWORD
environment variable. This command is idempotent - an existing account
with the same username is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.username, "username", "admin", "administrator username")
	cmd.Flags().StringVar(&cfg.email, "email", "admin@example.com", "administrator email")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	password := os.Getenv("MEMBERDIR_ADMIN_PASSWORD")
	if password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("MEMBERDIR_ADMIN_PASSWORD environment variable is required")
	}

	// Use cmd.Context() so SIGINT/SIGTERM interrupt a stuck database.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	members := authpg.NewMemberRepository(pool)
	hasher := auth.NewArgon2idHasher(auth.DefaultParams())

	hash, err := hasher.Hash(password)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
	}

	admin, err := auth.NewMember(cfg.username, cfg.email, hash, auth.RoleAdmin)
	if err != nil {
		return err
	}

	if err := members.Create(ctx, admin); err != nil {
		// The unique constraint makes a rerun a no-op rather than an
		// error.
		if errors.Is(err, auth.ErrDuplicateUsername) {
			cmd.Println("Administrator account already exists, skipping seed")

			existing, getErr := members.GetByUsername(ctx, cfg.username)
			if getErr != nil {
				slog.Warn("could not verify existing administrator",
					"username", cfg.username,
					"error", getErr)
			} else if existing.Role != auth.RoleAdmin {
				slog.Warn("seed account exists without the administrator role",
					"username", cfg.username,
					"role", string(existing.Role))
			}
			return nil
		}
		return oops.Code("SEED_FAILED").With("operation", "create administrator").Wrap(err)
	}

	cmd.Printf("Created administrator account: %s\n", cfg.username)
	slog.Info("created administrator", "member_id", admin.ID.String(), "username", admin.Username)
	return nil
}
