package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/agentops/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Creates or upgrades the sessions, steps, llm_calls, tool_calls and skill_usages tables. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgentOps config file")
	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Database.Driver)
	return nil
}
