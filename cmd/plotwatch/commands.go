package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/txn2/plotwatch/internal/server"
	"github.com/txn2/plotwatch/pkg/auth"
	"github.com/txn2/plotwatch/pkg/database/migrate"
	"github.com/txn2/plotwatch/pkg/platform"
)

const defaultTokenTTL = 24 * time.Hour

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "plotwatch",
		Short:         "Discord bot for browsing open housing plots",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	load := func() (*platform.Config, error) {
		cfg, err := platform.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := platform.SetupLogging(cfg.Logging, os.Stderr); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cmd.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newSweepCmd(load),
		newTokenCmd(load),
		newVersionCmd(),
	)
	return cmd
}

type configLoader func() (*platform.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve health, admin and MCP routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := platform.New(ctx, platform.WithConfig(cfg))
			if err != nil {
				return fmt.Errorf("creating platform: %w", err)
			}
			return p.Run(ctx)
		},
	}
}

func newMigrateCmd(load configLoader) *cobra.Command {
	run := func(fn func(*sql.DB, migrate.Dialect) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return platform.WithDatabase(cmd.Context(), cfg.Database, fn)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(db *sql.DB, d migrate.Dialect) error {
				return migrate.Run(db, d)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(db *sql.DB, d migrate.Dialect) error {
				return migrate.Down(db, d)
			}),
		},
	)

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
	}
	version.RunE = run(func(db *sql.DB, d migrate.Dialect) error {
		v, dirty, err := migrate.Version(db, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(version.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
		return nil
	})
	cmd.AddCommand(version)
	return cmd
}

func newSweepCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete persisted sessions older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return platform.WithDatabase(cmd.Context(), cfg.Database, func(db *sql.DB, d migrate.Dialect) error {
				n, err := platform.SweepDurable(cmd.Context(), db, d, cfg.Pagination.Retention, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions\n", n)
				return nil
			})
		},
	}
}

func newTokenCmd(load configLoader) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Admin.SigningKey == "" {
				return errors.New("admin.signing_key is not configured")
			}
			tokens, err := auth.NewTokenService(auth.TokenConfig{
				Issuer:     cfg.Admin.Issuer,
				SigningKey: []byte(cfg.Admin.SigningKey),
			})
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, []string{auth.RoleAdmin}, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "Token lifetime, 0 for no expiry")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), server.Info())
		},
	}
}
