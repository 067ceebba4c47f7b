package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/trycompai/comp-sub012/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [n]",
		Short: "Roll back the last n migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				steps = n
			}
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				return printStatus(cmd, m)
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*migrations.Migrator) error) error {
	cfg, logger, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := migrations.New(cfg.Database.URL(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(m)
}

func printStatus(cmd *cobra.Command, m *migrations.Migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version: %d\n", status.Version)
	fmt.Fprintf(out, "latest:  %d\n", status.Latest)
	if status.Dirty {
		fmt.Fprintln(out, "state:   dirty (fix the failed migration and force the version)")
	} else if status.Version < status.Latest {
		fmt.Fprintf(out, "state:   %d pending\n", status.Latest-status.Version)
	} else {
		fmt.Fprintln(out, "state:   up to date")
	}
	return nil
}
