package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haotianfei/frigate-exports-backup/internal/operations"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete backups older than the retention age",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.NewOperator(configFile)
		if err != nil {
			return err
		}
		removed, errs := op.Sweep(cmd.Context())
		fmt.Printf("removed %d expired backup(s)\n", removed)
		if len(errs) > 0 {
			return fmt.Errorf("sweep finished with %d error(s), first: %v", len(errs), errs[0])
		}
		return nil
	},
}
