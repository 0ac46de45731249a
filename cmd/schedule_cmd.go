package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/haotianfei/frigate-exports-backup/internal/config"
	"github.com/haotianfei/frigate-exports-backup/internal/logger"
	"github.com/haotianfei/frigate-exports-backup/internal/operations"
	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the export pipeline on a cron schedule",
	Long: `schedule keeps the process alive and executes a full export run
(whole previous day) on the cron expression configured under
schedule.cron, evaluated in the configured timezone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.NewOperator(configFile)
		if err != nil {
			return err
		}
		spec := op.Config().Schedule.Cron
		if spec == "" {
			return fmt.Errorf("%w: schedule.cron is required for schedule mode", config.ErrValidateConfig)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := logger.Global()
		scheduler := cron.New(cron.WithLocation(op.Location()))
		_, err = scheduler.AddFunc(spec, func() {
			report, err := op.Run(ctx, operations.Params{
				Mode: timeplan.Mode{StartHour: 0, EndHour: 24},
			})
			if err != nil {
				log.Error("scheduled run failed", "error", err)
				return
			}
			if !report.OK() {
				log.Warn("scheduled run finished with failures",
					"failed", report.Failed, "timed_out", report.TimedOut)
			}
		})
		if err != nil {
			return fmt.Errorf("%w: bad cron expression %q: %v", config.ErrValidateConfig, spec, err)
		}

		scheduler.Start()
		log.Info("scheduler started", "cron", spec, "timezone", op.Location().String())

		<-ctx.Done()
		log.Info("shutting down, waiting for a running job to finish")
		<-scheduler.Stop().Done()
		return nil
	},
}
