package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/pkg/config"
)

func newMigrateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema of the configured subscription store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(config.WithEnvFiles(*envFiles...))
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			b, err := newBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Migrate(cmd.Context(), log); err != nil {
				return err
			}
			log.InfoContext(cmd.Context(), "Migrations applied")
			return nil
		},
	}
}
