package kafka

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

type messageSink interface {
	Publish(ctx context.Context, m kafka.Message) error
}

// Publisher turns tracker envelopes into kafka messages keyed by product id.
type Publisher struct {
	Sink messageSink
}

var _ groupbuy.Emitter = (*Publisher)(nil)

func NewPublisher(p *Producer) *Publisher { return &Publisher{Sink: p} }

func (p *Publisher) Emit(ctx context.Context, topic string, env groupbuy.Envelope) error {
	value, err := Marshal(env)
	if err != nil {
		return err
	}
	return p.Sink.Publish(ctx, kafka.Message{
		Topic: topic,
		Key:   groupbuy.PartitionKey(env.CorrelationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	})
}

// Header returns the value of the named header, or "".
func Header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
