package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/satriahrh/edge-assistant/adapters/assistant"
	"github.com/satriahrh/edge-assistant/adapters/entitlement"
	"github.com/satriahrh/edge-assistant/adapters/hasher"
	httpadapter "github.com/satriahrh/edge-assistant/adapters/http"
	"github.com/satriahrh/edge-assistant/adapters/llm"
	"github.com/satriahrh/edge-assistant/adapters/message_broker"
	"github.com/satriahrh/edge-assistant/adapters/websocket"
	"github.com/satriahrh/edge-assistant/config"
	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const (
	shutdownTimeout = 10 * time.Second
	maxConcurrent   = 10
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.With().Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := newLlm(ctx, cfg)
	if err != nil {
		log.With().Fatal("Failed to create LLM client", zap.Error(err))
	}

	broker := message_broker.NewChannelMessageBroker()
	svc := usecase.NewChatService(gen, broker)
	meter := usecase.NewUsageMeter()
	subscriptions := entitlement.NewClient(cfg.SubscriptionURL, cfg.AssistantTimeout, nil)

	server := websocket.NewServer(subscriptions, func(token string) domain.Assistant {
		return assistant.NewHTTPTransport(cfg.ChatBackendURL, cfg.AssistantTimeout, func() string { return token })
	}, cfg.AllowedOrigins)

	authHandler := httpadapter.NewAuthHandler(hasher.New("edge-assistant"), []byte(cfg.JWTSecret), cfg.JWTExpiry, maxConcurrent)
	chatHandler := httpadapter.NewChatHandler(svc, meter, subscriptions, server.GetHub())
	proxyHandler := httpadapter.NewProxyHandler(cfg.APIURL, cfg.AssistantTimeout)

	e := echo.New()
	e.HideBanner = true

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Request size limit
	e.Use(middleware.BodyLimit("10MB"))

	e.GET("/ws", server.Handler, authHandler.JWTMiddleware)

	api := e.Group("/api/v1")

	// Public endpoints (no auth required)
	api.GET("/health", chatHandler.HealthCheck)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/phases", chatHandler.Phases)

	auth := []echo.MiddlewareFunc{authHandler.JWTMiddleware}
	limited := []echo.MiddlewareFunc{authHandler.JWTMiddleware, authHandler.RateLimitMiddleware}

	api.POST("/chat", chatHandler.Chat, limited...)
	api.GET("/subscription", chatHandler.Subscription, auth...)
	api.GET("/usage", chatHandler.Usage, auth...)

	// Phase tools
	api.GET("/evaluate", proxyHandler.Evaluate, auth...)
	api.POST("/design", proxyHandler.Design, auth...)
	api.POST("/design/validate", proxyHandler.ValidateIndicators, auth...)
	api.POST("/generate", proxyHandler.Generate, limited...)
	api.GET("/generate/:jobId", proxyHandler.GenerationJob, auth...)
	api.POST("/evolve", proxyHandler.Evolve, limited...)
	api.GET("/scenarios", proxyHandler.Scenarios, auth...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return meter.Run(ctx, broker)
	})
	g.Go(func() error {
		server.RunWebsocketHub(ctx)
		return nil
	})
	g.Go(func() error {
		log.With().Info("🚀 Starting server",
			zap.String("addr", cfg.Addr),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.String("env", cfg.Env))
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := e.Shutdown(shutdownCtx)
		broker.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.With().Fatal("Server stopped with error", zap.Error(err))
	}
	log.With().Info("👋 Server stopped")
}

func newLlm(ctx context.Context, cfg *config.Config) (domain.Llm, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return llm.NewMockClient(0), nil
	}
}
