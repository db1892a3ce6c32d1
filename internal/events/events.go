// Package events is the in-process pub/sub fabric for run progress and log
// lines. Publishing is fire-and-forget: there is no back-pressure, listeners
// must keep up or drop.
package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
)

// Topics published by the clone and schema-export pipelines.
const (
	TopicCloneProgress  = "clone-progress"
	TopicCloneLog       = "clone-log"
	TopicSchemaProgress = "schema-progress"
	TopicSchemaLog      = "schema-log"
)

// Bus wraps a watermill gochannel pub/sub.
type Bus struct {
	ps *gochannel.GoChannel
}

// NewBus creates an in-process bus with a bounded output buffer.
func NewBus() *Bus {
	ps := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NopLogger{},
	)
	return &Bus{ps: ps}
}

// Publish marshals payload to JSON and publishes it. Failures are logged and
// swallowed: an event listener problem must never fail a run.
func (b *Bus) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("event marshal failed", "topic", topic, "err", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.ps.Publish(topic, msg); err != nil {
		slog.Warn("event publish failed", "topic", topic, "err", err)
	}
}

// PublishLog publishes a plain string line on a log topic.
func (b *Bus) PublishLog(topic, line string) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(line))
	if err := b.ps.Publish(topic, msg); err != nil {
		slog.Warn("event publish failed", "topic", topic, "err", err)
	}
}

// Subscribe returns the raw message channel for a topic. The channel closes
// when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.ps.Subscribe(ctx, topic)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.ps.Close()
}

// Decode unmarshals a message payload into T and acks the message.
func Decode[T any](msg *message.Message) (T, error) {
	var v T
	err := json.Unmarshal(msg.Payload, &v)
	msg.Ack()
	return v, err
}
