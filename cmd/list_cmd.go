package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/backman/internal/operations"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog artifacts and flag corrupt entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.New(cmd.Context(), ConfigFile)
		if err != nil {
			return err
		}
		cat, err := op.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, rec := range cat.Records {
			fmt.Printf("%-40s %10d bytes  %s\n",
				rec.ID, rec.SizeBytes, rec.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		for _, c := range cat.Corrupt {
			fmt.Printf("CORRUPT %s: %s\n", c.Path, c.Reason)
		}
		return nil
	},
}
