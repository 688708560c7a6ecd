package notify

import (
	"context"
	"errors"
	"time"

	"rental_expiry_monitor/internal/domain/expiry"
)

// Kind distinguishes a report with expiries from the all-clear acknowledgment.
type Kind string

const (
	KindExpiry  Kind = "expiry"
	KindNominal Kind = "nominal"
)

// ErrChannelDisabled is returned by constructors when a channel is switched off in config.
var ErrChannelDisabled = errors.New("channel disabled")

// Message is rendered once per run and handed to every channel.
type Message struct {
	Kind    Kind
	Subject string
	// Body is the long form for email, chat and Telegram.
	Body string
	// Short is the SMS form.
	Short   string
	Outcome *expiry.Outcome
	// Attachment is an optional file path (the reconciled table).
	Attachment string
}

// Channel is one notification transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Delivery is the result of sending a message on one channel.
type Delivery struct {
	Channel  string        `json:"channel"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (d Delivery) OK() bool {
	return d.Err == nil
}
