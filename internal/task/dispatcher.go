package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/metrics"
	"github.com/agilefinance/boletoflow/internal/tracing"
)

// Processor owns the business logic for exactly one task type. Process
// returns the result document stored on the task when it succeeds; any
// returned error fails the attempt and feeds retry accounting.
type Processor interface {
	Type() Type
	Process(ctx context.Context, t *Task) (json.RawMessage, error)
}

// Dispatcher creates tasks, drains pending batches and converts processor
// outcomes into task status transitions plus execution-log rows. Processor
// errors never escape a single task's handling; only a failed claim aborts
// a tick.
type Dispatcher struct {
	store      Store
	processors map[Type]Processor
	backoff    Backoff
	log        *logging.Logger
}

func NewDispatcher(store Store, backoff Backoff, processors ...Processor) *Dispatcher {
	m := make(map[Type]Processor, len(processors))
	for _, p := range processors {
		m[p.Type()] = p
	}
	return &Dispatcher{
		store:      store,
		processors: m,
		backoff:    backoff,
		log:        logging.New("boletoflow-dispatcher"),
	}
}

// Enqueue validates the type against the registered processors and persists
// a new pending task along with its initial execution-log row.
func (d *Dispatcher) Enqueue(ctx context.Context, p CreateParams) (*Task, error) {
	typ, err := ParseType(string(p.Type))
	if err != nil {
		return nil, err
	}
	if _, ok := d.processors[typ]; !ok {
		return nil, &InvalidTypeError{Type: string(p.Type)}
	}

	t, err := d.store.Create(ctx, p)
	if err != nil {
		d.log.WithContext(ctx).WithTaskType(string(p.Type)).WithError(err).Error("task creation failed")
		return nil, err
	}

	d.appendLog(ctx, t.ID, StatusPending, map[string]any{"type": t.Type}, "")
	d.log.WithContext(ctx).WithTask(t.ID).WithTaskType(string(t.Type)).Info("task created")
	return t, nil
}

// RunTick claims one batch of due tasks and processes it sequentially. A
// claim failure aborts the tick with no side effects; per-task failures are
// absorbed so siblings in the batch still run.
func (d *Dispatcher) RunTick(ctx context.Context, batchSize int) error {
	ctx, span := tracing.StartSpan(ctx, "dispatcher.tick",
		attribute.Int("batch_size", batchSize),
	)
	defer span.End()

	tasks, err := d.store.ClaimPending(ctx, batchSize)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		d.log.WithContext(ctx).WithError(err).Error("claim pending tasks failed")
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	span.SetAttributes(attribute.Int("claimed", len(tasks)))
	d.log.WithContext(ctx).WithField("count", len(tasks)).Info("processing task batch")

	for _, t := range tasks {
		d.processOne(ctx, t)
	}
	return nil
}

func (d *Dispatcher) processOne(ctx context.Context, t *Task) {
	ctx, span := tracing.StartSpan(ctx, "task.process",
		attribute.Int64("task_id", t.ID),
		attribute.String("task_type", string(t.Type)),
		attribute.Int("retries", t.Retries),
	)
	defer span.End()

	d.appendLog(ctx, t.ID, StatusProcessing, nil, "")

	start := time.Now()
	proc, ok := d.processors[t.Type]
	if !ok {
		// A row with a type outside the closed set can only come from a
		// foreign writer; park it instead of retrying forever.
		d.fail(ctx, t, &InvalidTypeError{Type: string(t.Type)})
		return
	}

	result, err := proc.Process(ctx, t)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		d.fail(ctx, t, err)
		metrics.RecordTask(string(t.Type), "failed", time.Since(start))
		return
	}

	if uerr := d.store.MarkCompleted(ctx, t.ID, result); uerr != nil {
		// Isolation: a bookkeeping failure on one task must not take down
		// the batch.
		d.log.WithContext(ctx).WithTask(t.ID).WithError(uerr).Error("mark completed failed")
		tracing.SetSpanError(ctx, uerr)
		return
	}
	d.appendLog(ctx, t.ID, StatusCompleted, nil, "")
	metrics.RecordTask(string(t.Type), "completed", time.Since(start))
	d.log.WithContext(ctx).WithTask(t.ID).WithTaskType(string(t.Type)).Info("task completed")
}

func (d *Dispatcher) fail(ctx context.Context, t *Task, cause error) {
	retryAt := time.Now().Add(d.backoff.Delay(t.Retries + 1))
	updated, err := d.store.MarkFailed(ctx, t.ID, cause.Error(), retryAt)
	if err != nil {
		d.log.WithContext(ctx).WithTask(t.ID).WithError(err).Error("mark failed failed")
		return
	}

	reason := failureReason(cause)
	metrics.RecordRetry(reason)
	d.appendLog(ctx, t.ID, updated.Status, map[string]any{
		"retries": updated.Retries,
		"reason":  reason,
	}, cause.Error())

	entry := d.log.WithContext(ctx).WithTask(t.ID).WithTaskType(string(t.Type)).WithError(cause).
		WithField("retries", updated.Retries)
	if updated.Status == StatusFailed {
		entry.Warn("task exhausted retries")
	} else {
		entry.WithField("retry_at", retryAt.Format(time.RFC3339)).Info("task scheduled for retry")
	}
}

func (d *Dispatcher) appendLog(ctx context.Context, taskID int64, status Status, metadata map[string]any, errMsg string) {
	var raw json.RawMessage
	if metadata != nil {
		raw, _ = json.Marshal(metadata)
	}
	if err := d.store.AppendLog(ctx, taskID, status, raw, errMsg); err != nil {
		d.log.WithContext(ctx).WithTask(taskID).WithError(err).Error("execution log write failed")
	}
}

// failureReason buckets an error for retry metrics.
func failureReason(err error) string {
	var procErr *ProcessingError
	var typeErr *InvalidTypeError
	var persErr *PersistenceError
	switch {
	case errors.As(err, &procErr):
		return "precondition"
	case errors.As(err, &typeErr):
		return "invalid_type"
	case errors.As(err, &persErr):
		return "persistence"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return "timeout"
	case strings.Contains(lower, "connection refused"):
		return "connection_refused"
	case strings.Contains(lower, "no such host") || strings.Contains(lower, "dns"):
		return "dns_error"
	}
	return "provider"
}
