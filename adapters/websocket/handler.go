package websocket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	httpadapter "github.com/satriahrh/edge-assistant/adapters/http"
	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
	"github.com/satriahrh/edge-assistant/utils/log"
)

// Handler upgrades GET /ws?phase=<id> into a chat surface for the
// authenticated user. It returns once the connection is gone and the last
// round trip has settled.
func (s *Server) Handler(c echo.Context) error {
	phaseID, err := domain.ParsePhaseID(c.QueryParam("phase"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown phase")
	}
	phase, err := domain.LookupPhase(phaseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown phase")
	}

	userID := httpadapter.UserID(c)
	token, _ := c.Get(httpadapter.TokenKey).(string)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx := context.WithoutCancel(c.Request().Context())
	ctx = log.ContextWithSession(log.ContextWithUser(ctx, userID), uuid.NewString())
	ctx = log.ContextWithPhase(ctx, phase.ID.String())

	client := NewClient(ctx, conn)
	surface := usecase.NewChatSurface(phase, userID, s.gate, s.assistantFor(token), client)
	client.Attach(surface)

	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()
	log.WithCtx(ctx).Info("💬 Chat surface opened")

	surface.Mount(client.Context())
	<-client.Context().Done()
	surface.Wait()

	log.WithCtx(ctx).Info("Chat surface closed")
	return nil
}
