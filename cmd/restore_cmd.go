package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kebairia/backman/internal/archive"
	"github.com/kebairia/backman/internal/operations"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <artifact> <destination>",
	Short: "Verify an artifact's checksum and extract it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.New(cmd.Context(), ConfigFile)
		if err != nil {
			return err
		}
		if _, err := op.Restore(cmd.Context(), args[0], args[1], false); err != nil {
			if errors.Is(err, archive.ErrChecksumMismatch) {
				exitCode = 2
			}
			return err
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <artifact>",
	Short: "Check an artifact against its checksum sidecar without extracting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.New(cmd.Context(), ConfigFile)
		if err != nil {
			return err
		}
		if _, err := op.Restore(cmd.Context(), args[0], "", true); err != nil {
			if errors.Is(err, archive.ErrChecksumMismatch) {
				exitCode = 2
			}
			return err
		}
		return nil
	},
}
