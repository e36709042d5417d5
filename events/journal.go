// Package events publishes every dispatched intent to a watermill topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

// Topic is the default journal topic.
const Topic = "certdash.intents"

// Event is the published form of an intent. Secrets are never part of the
// payload.
type Event struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Journal publishes intents.
type Journal struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithTopic overrides the topic.
func WithTopic(topic string) Option {
	return func(j *Journal) {
		if topic != "" {
			j.topic = topic
		}
	}
}

// WithLogger sets the journal's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewJournal creates a Journal over publisher.
func NewJournal(publisher message.Publisher, opts ...Option) *Journal {
	j := &Journal{
		publisher: publisher,
		topic:     Topic,
		logger:    slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "journal")
	return j
}

// Topic returns the topic the journal publishes to.
func (j *Journal) Topic() string { return j.topic }

// Publish sends a as one message.
func (j *Journal) Publish(ctx context.Context, a intent.Action) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	body, err := json.Marshal(Event{Type: a.Type(), Payload: payload, OccurredAt: j.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), body)
	msg.Metadata.Set("type", a.Type())
	msg.SetContext(ctx)

	if err := j.publisher.Publish(j.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Listener returns a store Listener that publishes every dispatched intent.
// Publish failures are logged and never block the store.
func (j *Journal) Listener() store.Listener {
	return func(a intent.Action, _ store.State) {
		if err := j.Publish(context.Background(), a); err != nil {
			j.logger.Warn("journal publish failed", "type", a.Type(), "error", err)
		}
	}
}

// Decode parses a journal message.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}
