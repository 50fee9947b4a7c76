package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openclaw/agentops/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create all AgentOps tables",
		Long: `Drops every AgentOps table, including the migration history, and
migrates again from scratch. All telemetry is lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes || force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgentOps config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt (alias for --yes)")
	return cmd
}

var errNotInteractive = errors.New("stdin is not a terminal; pass --yes to confirm the reset")

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	target := cfg.Database.Name
	if cfg.Database.Driver == "sqlite" {
		target = cfg.Database.Path
	}
	if target == "" {
		target = cfg.Database.Driver
	}

	if !skipConfirm {
		in := cmd.InOrStdin()
		if !interactive(in) {
			return errNotInteractive
		}
		if !confirmReset(out, in, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := db.Reset(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s reset, %d tables re-created\n", target, len(db.AllModels()))
	return nil
}

// interactive reports whether in can answer a prompt. Files must be
// terminals; other readers are scripted input.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}

func confirmReset(out io.Writer, in io.Reader, target string) bool {
	fmt.Fprintf(out, "WARNING: This will permanently delete all telemetry in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
