package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haotianfei/frigate-exports-backup/internal/operations"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

var (
	runCameras   []string
	runDate      string
	runStartHour int
	runEndHour   int
	runSplit     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Export, wait, relocate and sweep in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.NewOperator(configFile)
		if err != nil {
			return err
		}

		mode := buildMode(cmd)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := op.Run(ctx, operations.Params{
			Cameras: runCameras,
			Date:    runDate,
			Mode:    mode,
		})
		if err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("run finished with failures: %d failed, %d timed out, %d file errors",
				report.Failed, report.TimedOut,
				len(report.RelocateErrors)+len(report.RecordErrors)+len(report.SweepErrors))
		}
		return nil
	},
}

// buildMode translates the flags into a planner mode. Only flags the
// user actually set are carried over, so contradictory combinations
// surface as planner errors instead of being silently resolved.
func buildMode(cmd *cobra.Command) timeplan.Mode {
	var mode timeplan.Mode
	hoursSet := cmd.Flags().Changed("start-hour") || cmd.Flags().Changed("end-hour")

	if cmd.Flags().Changed("split-interval") {
		mode.Split = runSplit
		if !hoursSet {
			return mode
		}
	}
	mode.StartHour = runStartHour
	mode.EndHour = runEndHour
	return mode
}

func init() {
	runCmd.Flags().
		StringSliceVarP(&runCameras, "cameras", "C", nil, "cameras to export (default: all)")
	runCmd.Flags().
		StringVar(&runDate, "date", "", "target date as YYYY-MM-DD (default: days_ago before today)")
	runCmd.Flags().
		IntVar(&runStartHour, "start-hour", 0, "export start hour (0-24)")
	runCmd.Flags().
		IntVar(&runEndHour, "end-hour", 24, "export end hour (0-24, 24 = next midnight)")
	runCmd.Flags().
		IntVar(&runSplit, "split-interval", 0, "split the day into windows of this many hours")
}
