// internal/infra/pubsub/publisher.go
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
)

// Publisher is a notification channel that publishes the run outcome to a Pub/Sub topic,
// so downstream systems can react to expiries without parsing the human-facing text.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *logrus.Entry
	now    func() time.Time
}

// Payload is the JSON document published for each run.
type Payload struct {
	Kind      notify.Kind          `json:"kind"`
	Subject   string               `json:"subject"`
	RunDate   string               `json:"run_date,omitempty"`
	Strategy  expiry.Strategy      `json:"strategy,omitempty"`
	Processed int                  `json:"processed"`
	Expired   []expiry.ExpiryEvent `json:"expired"`
	Resets    []expiry.ResetEvent  `json:"resets"`
	Issues    []string             `json:"issues"`
	SentAt    time.Time            `json:"sent_at"`
}

func NewPublisher(ctx context.Context, projectID, topicID string, logger *logrus.Entry) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewPublisherWithClient(client, topicID, logger), nil
}

// NewPublisherWithClient uses an existing client; Close still closes it.
func NewPublisherWithClient(client *pubsub.Client, topicID string, logger *logrus.Entry) *Publisher {
	return &Publisher{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
		now:    time.Now,
	}
}

func (p *Publisher) Name() string {
	return "pubsub"
}

func (p *Publisher) Send(ctx context.Context, msg notify.Message) error {
	data, err := json.Marshal(BuildPayload(msg, p.now()))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": string(msg.Kind)},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic.ID(), err)
	}
	p.logger.WithFields(logrus.Fields{"topic": p.topic.ID(), "message_id": id}).Debug("Run outcome published")
	return nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// BuildPayload converts a rendered message into the published document. Slices are never nil
// so consumers always see arrays.
func BuildPayload(msg notify.Message, sentAt time.Time) Payload {
	payload := Payload{
		Kind:    msg.Kind,
		Subject: msg.Subject,
		Expired: []expiry.ExpiryEvent{},
		Resets:  []expiry.ResetEvent{},
		Issues:  []string{},
		SentAt:  sentAt.UTC(),
	}
	if o := msg.Outcome; o != nil {
		if !o.RunDate.IsZero() {
			payload.RunDate = o.RunDate.Format("2006-01-02")
		}
		payload.Strategy = o.Strategy
		payload.Processed = o.Processed
		if o.Expired != nil {
			payload.Expired = o.Expired
		}
		if o.Resets != nil {
			payload.Resets = o.Resets
		}
		payload.Issues = o.IssueMessages()
	}
	return payload
}
