package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agilefinance/boletoflow/internal/boleto"
	"github.com/agilefinance/boletoflow/internal/task"
)

var resetEnqueue bool

var boletoCmd = &cobra.Command{
	Use:   "boleto",
	Short: "Inspect and remediate boletos",
}

var boletoGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one boleto with its installment data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid boleto id %q", args[0])
		}

		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		b, err := boleto.NewPostgresRepository(pool).FindByID(ctx, id)
		if err != nil {
			return err
		}
		printOutput(b)
		return nil
	},
}

var boletoResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Move a boleto from Erro back to A Emitir",
	Long: `Move a boleto stuck in the Erro state back to A Emitir so a fresh
task can retry issuance. With --enqueue, a boleto.issue task is created
immediately after the reset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid boleto id %q", args[0])
		}

		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		applied, err := boleto.NewPostgresRepository(pool).ResetError(ctx, id)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("boleto %d is not in %q", id, boleto.StatusError)
		}
		fmt.Printf("boleto %d reset to %q\n", id, boleto.StatusToIssue)

		if !resetEnqueue {
			return nil
		}

		payload, _ := json.Marshal(task.BoletoPayload{BoletoID: id})
		store := task.NewPostgresStore(pool)
		t, err := store.Create(ctx, task.CreateParams{
			Type:    task.TypeBoletoIssue,
			Payload: payload,
		})
		if err != nil {
			return fmt.Errorf("reset applied but task creation failed: %w", err)
		}
		if err := store.AppendLog(ctx, t.ID, task.StatusPending, nil, ""); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: execution log write failed: %v\n", err)
		}
		fmt.Printf("task %d enqueued\n", t.ID)
		return nil
	},
}

func init() {
	boletoResetCmd.Flags().BoolVar(&resetEnqueue, "enqueue", false, "enqueue a boleto.issue task after resetting")

	boletoCmd.AddCommand(boletoGetCmd, boletoResetCmd)
	rootCmd.AddCommand(boletoCmd)
}
