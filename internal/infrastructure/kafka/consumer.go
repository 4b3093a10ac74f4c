// Package kafka feeds domain events published by other marketplace services into the dispatcher.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/validate"
	"github.com/segmentio/kafka-go"
)

// HandleFunc receives every well-formed event read from the topic.
type HandleFunc func(ctx context.Context, ev domain.DomainEvent)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	handle HandleFunc
}

func NewConsumer(brokers []string, groupID, topic string, handle HandleFunc) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka consumer requires a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, handle: handle}, nil
}

// Run reads until ctx is cancelled. Malformed messages are logged and committed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read domain event: %w", err)
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ev, err := Decode(msg.Value)
	if err != nil {
		slog.Warn("domain event dropped",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"err", err,
		)
		return
	}
	c.handle(ctx, ev)
}

// Decode parses and validates one message value.
func Decode(raw []byte) (domain.DomainEvent, error) {
	var ev domain.DomainEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.DomainEvent{}, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(ev); err != nil {
		return domain.DomainEvent{}, err
	}
	if err := ev.Check(); err != nil {
		return domain.DomainEvent{}, err
	}
	return ev, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
