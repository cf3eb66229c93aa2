package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic/channel with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic/channel and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan BrokerMessage, error)

	// Close closes the message broker connection
	Close() error
}

// BrokerMessage represents a message received from the broker
type BrokerMessage struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// RoundTripEvent is published after the chat backend answered a conversation.
type RoundTripEvent struct {
	UserID        string    `json:"user_id"`
	HistoryLength int       `json:"history_length"`
	ReplyLength   int       `json:"reply_length"`
	Timestamp     time.Time `json:"timestamp"`
}

// Usage counts the chat round trips of a user on one UTC day.
type Usage struct {
	UserID   string `json:"userId"`
	Day      string `json:"day"`
	Messages int    `json:"messages"`
}
