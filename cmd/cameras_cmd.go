package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haotianfei/frigate-exports-backup/internal/operations"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List cameras known to Frigate",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := operations.NewOperator(configFile)
		if err != nil {
			return err
		}
		cameras, err := op.Cameras(cmd.Context())
		if err != nil {
			return err
		}
		for _, camera := range cameras {
			fmt.Println(camera)
		}
		return nil
	},
}
