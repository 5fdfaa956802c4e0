package boleto

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/provider"
	"github.com/agilefinance/boletoflow/internal/task"
	"github.com/agilefinance/boletoflow/internal/tracing"
)

// Processor drives one boleto through the issuance state machine for a
// boleto.issue task. The document status write and the task status write
// are deliberately separate: the document's Erro state is persisted even
// when the task goes on to retry, so an operator can always see why a
// document is stuck.
type Processor struct {
	repo   Repository
	issuer provider.Issuer
	log    *logging.Logger
}

func NewProcessor(repo Repository, issuer provider.Issuer) *Processor {
	return &Processor{
		repo:   repo,
		issuer: issuer,
		log:    logging.New("boletoflow-boleto"),
	}
}

func (p *Processor) Type() task.Type { return task.TypeBoletoIssue }

func (p *Processor) Process(ctx context.Context, t *task.Task) (json.RawMessage, error) {
	var payload task.BoletoPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, &task.ProcessingError{Reason: "malformed boleto payload: " + err.Error()}
	}

	ctx, span := tracing.StartSpan(ctx, "boleto.issue",
		attribute.Int64("boleto_id", payload.BoletoID),
	)
	defer span.End()

	p.log.WithContext(ctx).WithBoleto(payload.BoletoID).WithTask(t.ID).Info("issuing boleto")

	b, err := p.repo.FindByID(ctx, payload.BoletoID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &task.ProcessingError{Reason: "boleto not found"}
		}
		return nil, &task.PersistenceError{Op: "boleto_find", Err: err}
	}

	// Idempotency: a duplicate or stale task for an already-issued (or
	// already-errored) document is a successful no-op, never a second
	// provider call.
	if b.Status != StatusToIssue {
		tracing.AddSpanEvent(ctx, "boleto.skip", attribute.String("status", b.Status))
		p.log.WithContext(ctx).WithBoleto(b.ID).WithField("status", b.Status).
			Warn("boleto not eligible for issuance, skipping")
		return json.Marshal(map[string]any{"skipped": true, "status": b.Status})
	}

	res, err := p.issuer.IssueBoleto(ctx, BuildIssueRequest(b))
	if err != nil {
		tracing.SetSpanError(ctx, err)
		p.recordError(ctx, b.ID, err)
		return nil, err
	}

	applied, err := p.repo.MarkIssued(ctx, b.ID, IssuedArtifacts{
		URL:       res.URL,
		Barcode:   res.Barcode,
		OurNumber: res.OurNumber,
		Response:  res.Raw,
	})
	if err != nil {
		return nil, &task.PersistenceError{Op: "boleto_mark_issued", Err: err}
	}
	if !applied {
		// Another actor transitioned the document while the provider call
		// was in flight. The issuance happened; nothing more to persist.
		p.log.WithContext(ctx).WithBoleto(b.ID).Warn("boleto already transitioned, artifacts not applied")
	}

	p.log.WithContext(ctx).WithBoleto(b.ID).WithField("our_number", res.OurNumber).Info("boleto issued")
	return json.Marshal(map[string]any{
		"url":        res.URL,
		"barcode":    res.Barcode,
		"our_number": res.OurNumber,
	})
}

// recordError is the best-effort side-channel write of the Erro state. Its
// own failure is logged and must not mask the original provider error.
func (p *Processor) recordError(ctx context.Context, boletoID int64, cause error) {
	response, merr := json.Marshal(map[string]any{
		"error":     cause.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if merr != nil {
		p.log.WithContext(ctx).WithBoleto(boletoID).WithError(merr).Error("error payload marshal failed")
		return
	}
	if _, err := p.repo.MarkError(ctx, boletoID, response); err != nil {
		p.log.WithContext(ctx).WithBoleto(boletoID).WithError(err).Error("boleto error state write failed")
	}
}

// BuildIssueRequest maps boleto fields onto the provider issuance payload.
// Pure transformation, no I/O.
func BuildIssueRequest(b *Boleto) provider.IssueRequest {
	return provider.IssueRequest{
		Amount:      b.Amount,
		DueDate:     b.DueDate.Format("2006-01-02"),
		Description: b.Description,
		Payer: provider.Payer{
			Name:     b.PayerName,
			Document: b.PayerDocument,
			Address:  b.PayerAddress,
		},
		Installment: provider.Seq{
			Number: b.InstallmentNo,
			Total:  b.TotalInstall,
		},
	}
}
