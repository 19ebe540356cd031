package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/backman/internal/operations"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the GFS retention policy to the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.New(cmd.Context(), ConfigFile)
		if err != nil {
			return err
		}
		reports, err := op.Prune(cmd.Context(), pruneDryRun)
		if err != nil {
			return err
		}
		for _, rep := range reports {
			verb := "deleted"
			if rep.DryRun {
				verb = "would delete"
			}
			fmt.Printf("%s: keep %d, %s %d\n",
				rep.LogicalName, len(rep.Keep), verb, len(rep.Delete))
		}
		return nil
	},
}

func init() {
	pruneCmd.Flags().
		BoolVar(&pruneDryRun, "dry-run", false, "report the deletion set without touching anything")
}
