package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/backman/internal/logger"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string

	// exitCode is set by subcommands: 0 full success, 1 partial
	// success, 2 job failure.
	exitCode int

	rootCmd = &cobra.Command{
		Use:   "backman",
		Short: "backup orchestration with integrity verification and GFS retention",
		Long: `backman collects files, database dumps and docker volumes into
checksummed tar.gz artifacts, fans them out to local, remote and S3
destinations, and prunes old artifacts under a grandfather-father-son
retention policy.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command and exits with the run's status code.
func Execute() {
	log, err := logger.Init()
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", "error", err.Error())
		if exitCode == 0 {
			exitCode = 2
		}
	}
	logger.Cleanup()
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(listCmd)
}
