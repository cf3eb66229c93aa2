package http

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const (
	jwtIssuer  = "edge-assistant"
	jwtSubject = "chat"

	// Context keys set by JWTMiddleware.
	UserIDKey = "user_id"
	EmailKey  = "email"
	TokenKey  = "token"
)

type AuthHandler struct {
	hasher    domain.Hasher
	jwtSecret []byte
	jwtExpiry time.Duration
	semaphore chan struct{}
	now       func() time.Time
}

type LoginRequest struct {
	Email string `json:"email"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewAuthHandler(hasher domain.Hasher, jwtSecret []byte, jwtExpiry time.Duration, maxConcurrent int) *AuthHandler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &AuthHandler{
		hasher:    hasher,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		semaphore: make(chan struct{}, maxConcurrent),
		now:       time.Now,
	}
}

// Login issues a JWT for an email address. The user id is derived from the
// normalized address so the same email always maps to the same user.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email is required")
	}
	email := strings.ToLower(addr.Address)
	userID := h.hasher.Hash([]byte(email))

	now := h.now()
	expiresAt := now.Add(h.jwtExpiry)
	claims := &JWTClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   jwtSubject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Error signing JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	log.WithCtx(log.ContextWithUser(c.Request().Context(), userID)).Info("🔑 Issued token")

	return c.JSON(http.StatusOK, LoginResponse{
		Token:     tokenString,
		Type:      "Bearer",
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	})
}

// JWTMiddleware authenticates requests by bearer token. Websocket clients
// that cannot set headers may pass the token as the access_token query
// parameter instead.
func (h *AuthHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return err
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		}, jwt.WithIssuer(jwtIssuer))
		if err != nil {
			log.WithCtx(c.Request().Context()).Debug("JWT validation error", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid || claims.UserID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(TokenKey, tokenString)
		c.SetRequest(c.Request().WithContext(log.ContextWithUser(c.Request().Context(), claims.UserID)))
		return next(c)
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if token := c.QueryParam("access_token"); token != "" {
			return token, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}
	return tokenString, nil
}

// RateLimitMiddleware rejects requests beyond the configured concurrency.
func (h *AuthHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		select {
		case h.semaphore <- struct{}{}:
			defer func() { <-h.semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

// UserID returns the authenticated user id set by JWTMiddleware.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}
