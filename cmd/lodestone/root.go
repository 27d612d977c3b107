package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lodestone-mc/lodestone/internal/version"
	"github.com/lodestone-mc/lodestone/pkg/logging"
)

var (
	verbosity int
	dataDir   string

	rootCmd = &cobra.Command{
		Use:   "lodestone",
		Short: "Backend engine for the Lodestone game launcher",
		Long: `lodestone keeps an in-memory model of installed game instances in sync
with the on-disk instance tree, reacting to external changes as they
happen, and installs content through a hash-verified, content-addressed
library shared by all instances.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Launcher data directory (default $LODESTONE_DATA_DIR or the XDG data home)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lodestone version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}
