package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, type, status, payload, priority, retries, max_retries, scheduled_for, result, created_at, updated_at`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, p CreateParams) (*Task, error) {
	if _, err := ParseType(string(p.Type)); err != nil {
		return nil, err
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (type, status, payload, priority, max_retries, scheduled_for)
		VALUES ($1, 'pending', $2, $3, $4, $5)
		RETURNING `+taskColumns,
		p.Type, p.Payload, p.Priority, p.MaxRetries, p.ScheduledFor,
	)
	t, err := scanTask(row)
	if err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}
	return t, nil
}

// ClaimPending atomically flips eligible rows from pending to processing.
// SKIP LOCKED keeps concurrent claimers from blocking on, or double
// claiming, the same rows.
func (s *PostgresStore) ClaimPending(ctx context.Context, limit int) ([]*Task, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE tasks
		SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = 'pending'
			  AND (scheduled_for IS NULL OR scheduled_for <= now())
			ORDER BY priority DESC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		limit,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "claim_pending", Err: err}
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "claim_pending", Err: err}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "claim_pending", Err: err}
	}
	return tasks, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id int64, result json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'completed', result = $2, updated_at = now()
		WHERE id = $1`,
		id, result,
	)
	if err != nil {
		return &PersistenceError{Op: "mark_completed", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownTask
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, errMsg string, retryAt time.Time) (*Task, error) {
	result, merr := json.Marshal(map[string]any{
		"error":     errMsg,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if merr != nil {
		result = nil
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET retries = retries + 1,
		    status = CASE WHEN retries + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    scheduled_for = CASE WHEN retries + 1 >= max_retries THEN scheduled_for ELSE $2 END,
		    result = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, retryAt, result,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownTask
		}
		return nil, &PersistenceError{Op: "mark_failed", Err: err}
	}
	return t, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, taskID int64, status Status, metadata json.RawMessage, errMsg string) error {
	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_executions (task_id, status, metadata, error_message)
		VALUES ($1, $2, $3, $4)`,
		taskID, status, metadata, errVal,
	)
	if err != nil {
		return &PersistenceError{Op: "append_log", Err: err}
	}
	return nil
}

func (s *PostgresStore) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'failed'),
			count(*)
		FROM tasks`,
	).Scan(&m.PendingTasks, &m.FailedTasks, &m.TotalTasks)
	if err != nil {
		return Metrics{}, &PersistenceError{Op: "metrics", Err: err}
	}
	if m.TotalTasks > 0 {
		m.FailureRate = float64(m.FailedTasks) / float64(m.TotalTasks)
	}
	return m, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownTask
		}
		return nil, &PersistenceError{Op: "find_by_id", Err: err}
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return tasks, nil
}

func (s *PostgresStore) Logs(ctx context.Context, taskID int64) ([]*LogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, status, metadata, error_message, created_at
		FROM task_executions
		WHERE task_id = $1
		ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "logs", Err: err}
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		var errMsg *string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Status, &e.Metadata, &errMsg, &e.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "logs", Err: err}
		}
		if errMsg != nil {
			e.ErrorMessage = *errMsg
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "logs", Err: err}
	}
	return entries, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Type, &t.Status, &t.Payload, &t.Priority,
		&t.Retries, &t.MaxRetries, &t.ScheduledFor, &t.Result,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
