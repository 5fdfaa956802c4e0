package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agilefinance/boletoflow/internal/task"
)

var (
	taskType     string
	taskPayload  string
	taskPriority int
	taskRetries  int
	taskDelay    time.Duration

	listType   string
	listStatus string
	listLimit  int
	listOffset int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage queue tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Enqueue a new task",
	Long: `Enqueue a new task. The payload must be a JSON document matching the
task type, e.g. '{"boleto_id": 42}' for boleto.issue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := task.ParseType(taskType)
		if err != nil {
			return err
		}
		if !json.Valid([]byte(taskPayload)) {
			return fmt.Errorf("payload is not valid JSON")
		}

		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		store := task.NewPostgresStore(pool)
		params := task.CreateParams{
			Type:       typ,
			Payload:    json.RawMessage(taskPayload),
			Priority:   taskPriority,
			MaxRetries: taskRetries,
		}
		if taskDelay > 0 {
			at := time.Now().Add(taskDelay)
			params.ScheduledFor = &at
		}

		t, err := store.Create(ctx, params)
		if err != nil {
			return err
		}
		if err := store.AppendLog(ctx, t.ID, task.StatusPending, nil, ""); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: execution log write failed: %v\n", err)
		}
		printOutput(t)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by type and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		store := task.NewPostgresStore(pool)
		tasks, err := store.List(ctx, task.ListFilter{
			Type:   listType,
			Status: listStatus,
			Limit:  listLimit,
			Offset: listOffset,
		})
		if err != nil {
			return err
		}
		if outputJSON {
			printOutput(tasks)
			return nil
		}
		for _, t := range tasks {
			fmt.Printf("%-8d %-14s %-11s retries=%d/%d priority=%d\n",
				t.ID, t.Type, t.Status, t.Retries, t.MaxRetries, t.Priority)
		}
		return nil
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}

		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		t, err := task.NewPostgresStore(pool).FindByID(ctx, id)
		if err != nil {
			return err
		}
		printOutput(t)
		return nil
	},
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Show the execution history of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}

		ctx, pool, cleanup, err := connect()
		if err != nil {
			return err
		}
		defer cleanup()

		entries, err := task.NewPostgresStore(pool).Logs(ctx, id)
		if err != nil {
			return err
		}
		if outputJSON {
			printOutput(entries)
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s %-11s", e.CreatedAt.Format(time.RFC3339), e.Status)
			if e.ErrorMessage != "" {
				line += " error=" + e.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskType, "type", "", "task type (boleto.issue, message.send)")
	taskCreateCmd.Flags().StringVar(&taskPayload, "payload", "{}", "JSON payload")
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", 0, "priority (higher runs first)")
	taskCreateCmd.Flags().IntVar(&taskRetries, "max-retries", 3, "retry budget")
	taskCreateCmd.Flags().DurationVar(&taskDelay, "delay", 0, "defer eligibility by this duration")
	_ = taskCreateCmd.MarkFlagRequired("type")

	taskListCmd.Flags().StringVar(&listType, "type", "", "filter by type")
	taskListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	taskListCmd.Flags().IntVar(&listLimit, "limit", 50, "max rows")
	taskListCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskGetCmd, taskLogsCmd)
	rootCmd.AddCommand(taskCmd)
}
