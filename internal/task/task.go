package task

import (
	"encoding/json"
	"time"
)

// Status is the queue-level lifecycle of a task. Domain entities (boletos,
// messages) carry their own status; the two are deliberately independent so
// an operator can see why a document is stuck even after its task is gone.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Type is the closed set of work the dispatcher knows how to route. New task
// types are added here and in Dispatcher.process, never via runtime
// registration of arbitrary strings.
type Type string

const (
	TypeBoletoIssue Type = "boleto.issue"
	TypeMessageSend Type = "message.send"
)

// ParseType validates a type string against the closed set.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBoletoIssue, TypeMessageSend:
		return Type(s), nil
	}
	return "", &InvalidTypeError{Type: s}
}

type Task struct {
	ID           int64           `json:"id"`
	Type         Type            `json:"type"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload"`
	Priority     int             `json:"priority"`
	Retries      int             `json:"retries"`
	MaxRetries   int             `json:"max_retries"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BoletoPayload is the payload carried by boleto.issue tasks.
type BoletoPayload struct {
	BoletoID int64 `json:"boleto_id"`
}

// MessagePayload is the payload carried by message.send tasks.
type MessagePayload struct {
	MessageID int64  `json:"message_id"`
	Channel   string `json:"channel"`
}

// LogEntry is one row of the append-only execution history of a task. It is
// written on every meaningful transition and never read back to drive
// control flow.
type LogEntry struct {
	ID           int64           `json:"id"`
	TaskID       int64           `json:"task_id"`
	Status       Status          `json:"status"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Metrics is a point-in-time sample of queue health.
type Metrics struct {
	PendingTasks int64   `json:"pending_tasks"`
	FailedTasks  int64   `json:"failed_tasks"`
	TotalTasks   int64   `json:"total_tasks"`
	FailureRate  float64 `json:"failure_rate"`
}
