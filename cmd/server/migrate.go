package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/wellhistory/internal/db"
	"github.com/rpattn/wellhistory/internal/logging"
)

var downSteps int

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres history table migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New("migrate")

			if downSteps > 0 {
				version, err := db.RollbackMigrations(cfg.Database.Postgres(), downSteps)
				if err != nil {
					return err
				}
				logger.Infof("rolled back %d migration(s), now at version %d", downSteps, version)
				return nil
			}

			version, err := db.RunMigrations(cfg.Database.Postgres())
			if err != nil {
				return err
			}
			logger.Infof("database at version %d", version)
			return nil
		},
	}
}

func init() {
	cmd := newMigrateCmd()
	cmd.Flags().IntVar(&downSteps, "down", 0, "Roll back this many migrations instead of applying")
	rootCmd.AddCommand(cmd)
}
