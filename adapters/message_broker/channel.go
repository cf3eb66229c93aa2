package message_broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const topicBuffer = 100

var (
	ErrClosed    = errors.New("message broker is closed")
	ErrTopicFull = errors.New("topic channel is full")
)

// ChannelMessageBroker implements MessageBroker using Go channels. Each
// topic and routing key pair owns one buffered channel; publishing never
// blocks.
type ChannelMessageBroker struct {
	mu     sync.Mutex
	topics map[string]chan domain.BrokerMessage
	closed bool
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.BrokerMessage),
	}
}

// makeKey creates a unique key for topic and routingKey
func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// channelLocked returns the channel of key, creating it on first use.
func (b *ChannelMessageBroker) channelLocked(key string) chan domain.BrokerMessage {
	channel, exists := b.topics[key]
	if !exists {
		channel = make(chan domain.BrokerMessage, topicBuffer)
		b.topics[key] = channel
	}
	return channel
}

// Publish sends a message to a specific topic and routing key
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := domain.BrokerMessage{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	select {
	case b.channelLocked(makeKey(topic, routingKey)) <- msg:
		log.WithCtx(ctx).Debug("📤 Message published to topic",
			zap.String("topic", topic),
			zap.String("routingKey", routingKey),
			zap.Int("payload_size", len(message)))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrTopicFull, makeKey(topic, routingKey))
	}
}

// Subscribe listens for messages on a specific topic and routing key. The
// returned channel is closed when the broker closes.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	log.WithCtx(ctx).Info("📡 Subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return b.channelLocked(makeKey(topic, routingKey)), nil
}

// Close closes the message broker and all topic channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, channel := range b.topics {
		close(channel)
		log.With(zap.String("key", key)).Debug("🔒 Closed topic channel")
	}
	b.topics = make(map[string]chan domain.BrokerMessage)

	log.With().Info("🔒 Message broker closed")
	return nil
}
