package boleto

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence surface of the boleto lifecycle. The status
// transitions are conditional updates guarded on StatusToIssue: the guard,
// not the caller, decides whether a transition applies, which is what keeps
// two concurrent processors from double-issuing the same document.
type Repository interface {
	// FindByID loads the boleto joined with its installment data (amount,
	// due date, sequence) needed to build an issuance request.
	FindByID(ctx context.Context, id int64) (*Boleto, error)

	// MarkIssued applies the issued state and provider artifacts if and
	// only if the document is still in StatusToIssue. Returns false when
	// the guard did not match.
	MarkIssued(ctx context.Context, id int64, a IssuedArtifacts) (bool, error)

	// MarkError applies the error state and response payload under the
	// same guard.
	MarkError(ctx context.Context, id int64, response json.RawMessage) (bool, error)

	// ResetError flips a document from StatusError back to StatusToIssue
	// so a fresh task can retry issuance. Operator remediation only.
	ResetError(ctx context.Context, id int64) (bool, error)
}

const boletoColumns = `
	b.boleto_id, b.installment_id, b.status,
	i.amount, i.due_date,
	b.payer_name, b.payer_document, b.payer_address,
	b.description, b.installment_number, b.total_installments,
	b.url, b.barcode, b.our_number, b.response_data,
	b.created_at, b.updated_at`

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Boleto, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+boletoColumns+`
		FROM boletos b
		JOIN installments i ON b.installment_id = i.installment_id
		WHERE b.boleto_id = $1`,
		id,
	)

	var b Boleto
	var url, barcode, ourNumber *string
	err := row.Scan(
		&b.ID, &b.InstallmentID, &b.Status,
		&b.Amount, &b.DueDate,
		&b.PayerName, &b.PayerDocument, &b.PayerAddress,
		&b.Description, &b.InstallmentNo, &b.TotalInstall,
		&url, &barcode, &ourNumber, &b.ResponseData,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if url != nil {
		b.URL = *url
	}
	if barcode != nil {
		b.Barcode = *barcode
	}
	if ourNumber != nil {
		b.OurNumber = *ourNumber
	}
	return &b, nil
}

func (r *PostgresRepository) MarkIssued(ctx context.Context, id int64, a IssuedArtifacts) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE boletos
		SET status = $2, url = $3, barcode = $4, our_number = $5,
		    response_data = $6, updated_at = now()
		WHERE boleto_id = $1 AND status = $7`,
		id, StatusIssued, a.URL, a.Barcode, a.OurNumber, a.Response, StatusToIssue,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) MarkError(ctx context.Context, id int64, response json.RawMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE boletos
		SET status = $2, response_data = $3, updated_at = now()
		WHERE boleto_id = $1 AND status = $4`,
		id, StatusError, response, StatusToIssue,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) ResetError(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE boletos
		SET status = $2, updated_at = now()
		WHERE boleto_id = $1 AND status = $3`,
		id, StatusToIssue, StatusError,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
