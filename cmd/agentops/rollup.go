package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/agentops/internal/db"
	"github.com/openclaw/agentops/internal/rollup"
	"github.com/openclaw/agentops/internal/store"
)

func newRollupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Roll completed skill steps up into skill usage rows",
		Long: `Inserts one skill usage row for every completed step with a skill name
that has not been rolled up yet. Already rolled-up steps are skipped, so the
command is safe to run repeatedly or alongside the scheduled job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollup(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgentOps config file")
	return cmd
}

func runRollup(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	n, err := rollup.Run(cmd.Context(), store.New(gormDB))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled up %d skill usages\n", n)
	return nil
}
