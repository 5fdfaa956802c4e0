package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agilefinance/boletoflow/internal/task"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show queue health metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		m, err := task.NewPostgresStore(pool).Metrics(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			printOutput(m)
			return nil
		}
		fmt.Printf("pending: %d\nfailed:  %d\ntotal:   %d\nfailure rate: %.2f%%\n",
			m.PendingTasks, m.FailedTasks, m.TotalTasks, m.FailureRate*100)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
