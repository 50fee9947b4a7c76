package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/openclaw/agentops/internal/config"
	"github.com/openclaw/agentops/internal/db"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "agentops.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentops",
		Short: "AgentOps: telemetry for AI agent sessions",
		Long:  "AgentOps ingests agent session telemetry and serves it back for dashboards.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newRollupCmd())
	cmd.AddCommand(newDBCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentops %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// connectFromConfig loads the config file and opens the database it names.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
