package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const (
	RoundTripTopic  = "chat.round_trips"
	UsageRoutingKey = "usage"
)

var ErrInvalidChat = errors.New("invalid chat request")

// ChatService answers chat backend requests with the configured LLM.
type ChatService struct {
	llm    domain.Llm
	broker domain.MessageBroker
	now    func() time.Time
}

func NewChatService(gen domain.Llm, broker domain.MessageBroker) *ChatService {
	return &ChatService{llm: gen, broker: broker, now: time.Now}
}

// Reply validates the request and returns the LLM's answer to it. Every
// successful reply is published as a round trip event for usage metering.
func (s *ChatService) Reply(ctx context.Context, userID string, req domain.ChatRequest) (string, error) {
	if err := validateChat(req); err != nil {
		return "", err
	}

	reply, err := s.llm.Reply(ctx, req.SystemPrompt, req.Messages)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	event := domain.RoundTripEvent{
		UserID:        userID,
		HistoryLength: len(req.Messages),
		ReplyLength:   len(reply),
		Timestamp:     s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("Error marshaling round trip event", zap.Error(err))
		return reply, nil
	}
	// Publishing is best effort.
	if err := s.broker.Publish(ctx, RoundTripTopic, UsageRoutingKey, payload); err != nil {
		log.WithCtx(ctx).Warn("Error publishing round trip event", zap.Error(err))
	}

	return reply, nil
}

func validateChat(req domain.ChatRequest) error {
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return fmt.Errorf("%w: systemPrompt is required", ErrInvalidChat)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidChat)
	}
	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidChat, i, msg.Role)
		}
	}
	return nil
}
