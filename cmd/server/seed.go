package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/wellhistory/internal/logging"
)

var seedFile string

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a registry fixture into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := logging.With(cmd.Context(), logging.New("seed"))
			s, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			fixture, err := readFixture(seedFile)
			if err != nil {
				return err
			}
			if err := s.LoadFixture(ctx, fixture); err != nil {
				return err
			}

			cmd.Printf("seeded %d entities, %d revisions, %d submissions\n",
				len(fixture.Entities), len(fixture.Revisions), len(fixture.Submissions))
			return nil
		},
	}
}

func init() {
	cmd := newSeedCmd()
	cmd.Flags().StringVar(&seedFile, "file", "", "Fixture YAML to load (defaults to the bundled sample)")
	rootCmd.AddCommand(cmd)
}
