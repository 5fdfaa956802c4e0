// Package message handles outbound notifications (payment reminders,
// issuance confirmations) dispatched through the integration platform by
// message.send tasks.
package message

import (
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Channels the platform can deliver to.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

type Message struct {
	ID           int64     `json:"message_id"`
	Channel      string    `json:"channel"`
	Recipient    string    `json:"recipient"`
	Body         string    `json:"body"`
	Status       string    `json:"status"`
	ExternalID   string    `json:"external_id,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("message not found")

// KnownChannel reports whether the platform can deliver to the channel.
func KnownChannel(c string) bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}
