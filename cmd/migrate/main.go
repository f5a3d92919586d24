package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/env"
)

func main() {
	var source string

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the CoachDesk database migrations",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&source, "path", "file://migrations", "migration source URL")

	rootCmd.AddCommand(upCmd(&source))
	rootCmd.AddCommand(downCmd(&source))
	rootCmd.AddCommand(gotoCmd(&source))
	rootCmd.AddCommand(statusCmd(&source))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open connects golang-migrate to the database named in the environment.
func open(source string) (*migrate.Migrate, error) {
	env.SetupEnvFile()
	cfg, err := config.Load(env.Merged())
	if err != nil {
		return nil, err
	}
	log.Infof("[Migrate] Connecting to %s@%s:%s/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	m, err := migrate.New(source, cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		log.Warnf("[Migrate] Closing resources: %v, %v", sourceErr, dbErr)
	}
}

func upCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(*source)
			if err != nil {
				return err
			}
			defer closeMigrate(m)

			err = m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("[Migrate] No change: database is up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			log.Info("[Migrate] Migrations applied")
			return nil
		},
	}
}

func downCmd(source *string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(*source)
			if err != nil {
				return err
			}
			defer closeMigrate(m)

			if err := m.Steps(-steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			log.Infof("[Migrate] Rolled back %d migration(s)", steps)
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	return cmd
}

func gotoCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "goto [version]",
		Short: "Migrate up or down to the given version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			m, err := open(*source)
			if err != nil {
				return err
			}
			defer closeMigrate(m)

			err = m.Migrate(uint(version))
			if errors.Is(err, migrate.ErrNoChange) {
				log.Infof("[Migrate] No change: database is already at version %d", version)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate to %d: %w", version, err)
			}
			log.Infof("[Migrate] Migrated to version %d", version)
			return nil
		},
	}
}

func statusCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(*source)
			if err != nil {
				return err
			}
			defer closeMigrate(m)

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migrations applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			suffix := ""
			if dirty {
				suffix = " (dirty)"
			}
			fmt.Printf("Current version: %d%s\n", version, suffix)
			return nil
		},
	}
}
