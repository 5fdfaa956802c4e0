// Package boleto owns the issuance lifecycle of boletos: bank payment slips
// generated for installments. A boleto's status is independent of the task
// that drives its issuance, so an operator can always see why a document is
// stuck even after the task exhausted its retries.
package boleto

import (
	"encoding/json"
	"errors"
	"time"
)

// Domain states. Only documents in StatusToIssue are eligible for
// processing; the other two are terminal until an operator intervenes.
const (
	StatusToIssue = "A Emitir"
	StatusIssued  = "Emitido"
	StatusError   = "Erro"
)

type Boleto struct {
	ID            int64           `json:"boleto_id"`
	InstallmentID int64           `json:"installment_id"`
	Status        string          `json:"status"`
	Amount        float64         `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	PayerName     string          `json:"payer_name"`
	PayerDocument string          `json:"payer_document"`
	PayerAddress  string          `json:"payer_address"`
	Description   string          `json:"description"`
	InstallmentNo int             `json:"installment_number"`
	TotalInstall  int             `json:"total_installments"`
	URL           string          `json:"url,omitempty"`
	Barcode       string          `json:"barcode,omitempty"`
	OurNumber     string          `json:"our_number,omitempty"`
	ResponseData  json.RawMessage `json:"response_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IssuedArtifacts are the provider outputs persisted on success.
type IssuedArtifacts struct {
	URL       string
	Barcode   string
	OurNumber string
	Response  json.RawMessage
}

// ErrNotFound is returned when the referenced boleto does not exist.
var ErrNotFound = errors.New("boleto not found")
