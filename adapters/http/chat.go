package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
	"github.com/satriahrh/edge-assistant/utils/log"
)

// ConnectionCounter reports the number of live chat surfaces.
type ConnectionCounter interface {
	ClientCount() int
}

type ChatHandler struct {
	chatService   *usecase.ChatService
	usageMeter    *usecase.UsageMeter
	subscriptions domain.SubscriptionSource
	connections   ConnectionCounter
}

func NewChatHandler(
	chatService *usecase.ChatService,
	usageMeter *usecase.UsageMeter,
	subscriptions domain.SubscriptionSource,
	connections ConnectionCounter,
) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		usageMeter:    usageMeter,
		subscriptions: subscriptions,
		connections:   connections,
	}
}

// Chat answers one round trip: {systemPrompt, messages} in, {reply} out.
func (h *ChatHandler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	reply, err := h.chatService.Reply(ctx, UserID(c), req)
	if errors.Is(err, usecase.ErrInvalidChat) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		log.WithCtx(ctx).Error("Chat reply failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate reply"})
	}

	return c.JSON(http.StatusOK, domain.ChatReply{Reply: reply})
}

// Phases lists the assistants in presentation order.
func (h *ChatHandler) Phases(c echo.Context) error {
	phases := make([]domain.PhaseConfig, 0, len(domain.Phases()))
	for _, id := range domain.Phases() {
		cfg, err := domain.LookupPhase(id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Phase registry is incomplete")
		}
		phases = append(phases, cfg)
	}
	return c.JSON(http.StatusOK, phases)
}

// Subscription returns the plan and entitlements of the caller.
func (h *ChatHandler) Subscription(c echo.Context) error {
	ctx := c.Request().Context()
	sub, err := h.subscriptions.Subscription(ctx, UserID(c))
	if err != nil {
		log.WithCtx(ctx).Error("Error loading subscription", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to load subscription")
	}
	return c.JSON(http.StatusOK, sub)
}

// Usage returns today's round trip count of the caller.
func (h *ChatHandler) Usage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.usageMeter.Usage(UserID(c)))
}

// Health check endpoint
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"service":     "edge-assistant",
		"connections": h.connections.ClientCount(),
	})
}
