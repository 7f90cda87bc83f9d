package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/triage/internal/store/postgres"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(m *postgres.Migrator) error {
			if err := m.Up(); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			cmd.Println("migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(m *postgres.Migrator) error {
			if err := m.Down(); err != nil {
				return fmt.Errorf("revert migrations: %w", err)
			}
			cmd.Println("migrations reverted")
			return nil
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Apply N migrations, or revert them when N is negative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer: %s", args[0])
		}
		return withMigrator(func(m *postgres.Migrator) error {
			if err := m.Steps(n); err != nil {
				return fmt.Errorf("migrate %d steps: %w", n, err)
			}
			cmd.Printf("applied %d migration steps\n", n)
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(func(m *postgres.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			cmd.Printf("version: %d, dirty: %v\n", v, dirty)
			return nil
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the schema version without migrating (clears a dirty state)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return withMigrator(func(m *postgres.Migrator) error {
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			cmd.Printf("forced to version %d\n", v)
			return nil
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDSN, "dsn", "", "postgres:// URL (defaults to the configured database)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(fn func(*postgres.Migrator) error) error {
	url := migrateDSN
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		url = cfg.Database.URL()
	}

	m, err := postgres.NewMigrator(url)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}
