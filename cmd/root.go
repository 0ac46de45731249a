package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/haotianfei/frigate-exports-backup/internal/logger"
)

var (
	// configFile is the path to the YAML configuration.
	configFile string
	logLevel   string

	// rootCmd is the base command for frigate-backup.
	rootCmd = &cobra.Command{
		Use:   "frigate-backup",
		Short: "Export and back up Frigate NVR recordings",
		Long: `frigate-backup drives the Frigate export API: it requests
time-boxed export jobs, waits for them to finish, moves the resulting
files into a retention-managed backup directory, and prunes stale data
on both sides.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Init(logLevel)
			return err
		},
	}
)

// Execute runs the root command.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(camerasCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scheduleCmd)
}
