package message

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/provider"
	"github.com/agilefinance/boletoflow/internal/task"
	"github.com/agilefinance/boletoflow/internal/tracing"
)

// Processor dispatches one pending message for a message.send task.
type Processor struct {
	repo   Repository
	issuer provider.Issuer
	log    *logging.Logger
}

func NewProcessor(repo Repository, issuer provider.Issuer) *Processor {
	return &Processor{
		repo:   repo,
		issuer: issuer,
		log:    logging.New("boletoflow-message"),
	}
}

func (p *Processor) Type() task.Type { return task.TypeMessageSend }

func (p *Processor) Process(ctx context.Context, t *task.Task) (json.RawMessage, error) {
	var payload task.MessagePayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, &task.ProcessingError{Reason: "malformed message payload: " + err.Error()}
	}
	if payload.Channel != "" && !KnownChannel(payload.Channel) {
		return nil, &task.ProcessingError{Reason: "unknown channel " + payload.Channel}
	}

	ctx, span := tracing.StartSpan(ctx, "message.send",
		attribute.Int64("message_id", payload.MessageID),
	)
	defer span.End()

	m, err := p.repo.FindByID(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &task.ProcessingError{Reason: "message not found"}
		}
		return nil, &task.PersistenceError{Op: "message_find", Err: err}
	}

	// Duplicate tasks for an already-handled message are a no-op.
	if m.Status != StatusPending {
		tracing.AddSpanEvent(ctx, "message.skip", attribute.String("status", m.Status))
		p.log.WithContext(ctx).WithMessage(m.ID).WithField("status", m.Status).
			Warn("message not pending, skipping")
		return json.Marshal(map[string]any{"skipped": true, "status": m.Status})
	}

	channel := m.Channel
	if payload.Channel != "" {
		channel = payload.Channel
	}

	res, err := p.issuer.SendMessage(ctx, provider.MessageRequest{
		Channel:   channel,
		Recipient: m.Recipient,
		Body:      m.Body,
	})
	if err != nil {
		tracing.SetSpanError(ctx, err)
		// Best-effort failure write; the provider error still propagates.
		if _, werr := p.repo.MarkFailed(ctx, m.ID, err.Error()); werr != nil {
			p.log.WithContext(ctx).WithMessage(m.ID).WithError(werr).Error("message failure write failed")
		}
		return nil, err
	}

	applied, err := p.repo.MarkSent(ctx, m.ID, res.ExternalID)
	if err != nil {
		return nil, &task.PersistenceError{Op: "message_mark_sent", Err: err}
	}
	if !applied {
		p.log.WithContext(ctx).WithMessage(m.ID).Warn("message already transitioned, send result not applied")
	}

	p.log.WithContext(ctx).WithMessage(m.ID).WithField("channel", channel).Info("message sent")
	return json.Marshal(map[string]any{"external_id": res.ExternalID, "channel": channel})
}
