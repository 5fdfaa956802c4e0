package task

import (
	"context"
	"encoding/json"
	"time"
)

// CreateParams are the producer-supplied attributes of a new task.
type CreateParams struct {
	Type         Type
	Payload      json.RawMessage
	Priority     int
	MaxRetries   int
	ScheduledFor *time.Time
}

// ListFilter narrows List results for operator inspection.
type ListFilter struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

// Store is the durable queue. The Postgres implementation is the production
// one; tests substitute in-memory fakes.
//
// ClaimPending performs the atomic pending->processing transition for up to
// limit eligible tasks (status pending, scheduled_for due), ordered by
// priority desc then id asc. The claim is the concurrency barrier: a task
// returned here is invisible to any concurrent claimer, which is what makes
// multiple worker instances safe against double issuance.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*Task, error)
	ClaimPending(ctx context.Context, limit int) ([]*Task, error)

	// MarkCompleted moves a claimed task to its terminal success state.
	MarkCompleted(ctx context.Context, id int64, result json.RawMessage) error

	// MarkFailed increments the retry counter and either returns the task
	// to pending with the supplied next-attempt time, or parks it in the
	// terminal failed state once the budget is spent. The updated task is
	// returned so the caller can tell which of the two happened.
	MarkFailed(ctx context.Context, id int64, errMsg string, retryAt time.Time) (*Task, error)

	// AppendLog writes one execution-history row. Best effort from the
	// caller's point of view: a failed append is logged, never fatal.
	AppendLog(ctx context.Context, taskID int64, status Status, metadata json.RawMessage, errMsg string) error

	Metrics(ctx context.Context) (Metrics, error)

	FindByID(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, f ListFilter) ([]*Task, error)
	Logs(ctx context.Context, taskID int64) ([]*LogEntry, error)
}
