package message

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists messages. Transitions are guarded on StatusPending the
// same way boleto transitions are guarded, for the same reason.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Message, error)
	MarkSent(ctx context.Context, id int64, externalID string) (bool, error)
	MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT message_id, channel, recipient, body, status, external_id, error_message, created_at, updated_at
		FROM messages
		WHERE message_id = $1`,
		id,
	)

	var m Message
	var externalID, errMsg *string
	err := row.Scan(&m.ID, &m.Channel, &m.Recipient, &m.Body, &m.Status, &externalID, &errMsg, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if externalID != nil {
		m.ExternalID = *externalID
	}
	if errMsg != nil {
		m.ErrorMessage = *errMsg
	}
	return &m, nil
}

func (r *PostgresRepository) MarkSent(ctx context.Context, id int64, externalID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2, external_id = $3, error_message = NULL, updated_at = now()
		WHERE message_id = $1 AND status = $4`,
		id, StatusSent, externalID, StatusPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2, error_message = $3, updated_at = now()
		WHERE message_id = $1 AND status = $4`,
		id, StatusFailed, errMsg, StatusPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
