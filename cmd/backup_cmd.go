package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebairia/backman/internal/operations"
	"github.com/kebairia/backman/internal/source"
)

var (
	backupType   string
	backupDryRun bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, err := source.ParseSelector(backupType)
		if err != nil {
			return err
		}
		op, err := operations.New(cmd.Context(), ConfigFile)
		if err != nil {
			return err
		}
		run, err := op.Backup(cmd.Context(), selector, backupDryRun)
		if err != nil {
			return err
		}
		exitCode = operations.ExitCode(run.Status)
		return nil
	},
}

func init() {
	backupCmd.Flags().
		StringVarP(&backupType, "type", "t", "all", "source types to back up (all|files|database|docker)")
	backupCmd.Flags().
		BoolVar(&backupDryRun, "dry-run", false, "list what would be backed up without running")
}
