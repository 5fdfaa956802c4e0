// Package provider is the client for the external integration platform that
// actually issues boletos and dispatches messages. The core treats it as a
// black box: a request either comes back with issuance artifacts or fails
// with a ProviderError carrying whatever the platform returned.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// IssueRequest is the document issuance payload. Building it from a boleto
// is a pure transformation; all I/O happens in the client.
type IssueRequest struct {
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"due_date"` // YYYY-MM-DD
	Payer       Payer   `json:"payer"`
	Description string  `json:"description"`
	Installment Seq     `json:"installment"`
}

type Payer struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Address  string `json:"address"`
}

type Seq struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

// IssueResult carries the artifacts returned on successful issuance. Raw is
// the unparsed provider response, persisted for audit and reconciliation.
type IssueResult struct {
	URL       string          `json:"url"`
	Barcode   string          `json:"barcode"`
	OurNumber string          `json:"our_number"`
	Raw       json.RawMessage `json:"-"`
}

// MessageRequest is the payload for the send-message endpoint.
type MessageRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// MessageResult is the provider acknowledgement for a dispatched message.
type MessageResult struct {
	ExternalID string          `json:"external_id"`
	Raw        json.RawMessage `json:"-"`
}

// Issuer is the integration surface the processors depend on. The HTTP
// client is the production implementation; tests use fakes.
type Issuer interface {
	IssueBoleto(ctx context.Context, req IssueRequest) (*IssueResult, error)
	SendMessage(ctx context.Context, req MessageRequest) (*MessageResult, error)
}

// Error is a rejected or failed provider call. Status is zero for transport
// failures (timeout, refused connection); Body holds the raw response when
// one was received.
type Error struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }
