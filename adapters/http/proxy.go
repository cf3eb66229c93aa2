package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/utils/log"
)

const maxProxyBody = 10 * 1024 * 1024

var (
	tradeSeparators = regexp.MustCompile(`[ ,]+`)
	lineBreaks      = regexp.MustCompile(`\r?\n`)
)

// ProxyHandler forwards the phase tool endpoints to the backend API. Status
// and JSON body are passed through; a transport failure or a non-JSON body
// becomes a 500.
type ProxyHandler struct {
	baseURL string
	client  *http.Client
}

func NewProxyHandler(baseURL string, timeout time.Duration) *ProxyHandler {
	return &ProxyHandler{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type DesignRequest struct {
	Indicator string `json:"indicator"`
	Timeframe string `json:"timeframe"`
	UserID    string `json:"userId,omitempty"`
}

type GenerateRequest struct {
	Platform  string `json:"platform"`
	Indicator string `json:"indicator,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

type EvolveRequest struct {
	Trades []float64 `json:"trades"`
	UserID string    `json:"userId,omitempty"`
}

// Evaluate proxies GET /evaluate?topic=.
func (p *ProxyHandler) Evaluate(c echo.Context) error {
	query := url.Values{}
	if topic := c.QueryParam("topic"); topic != "" {
		query.Set("topic", topic)
	}
	query.Set("userId", UserID(c))
	return p.forward(c, http.MethodGet, "/evaluate", query, nil)
}

// Design proxies POST /design.
func (p *ProxyHandler) Design(c echo.Context) error {
	var req DesignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	req.UserID = UserID(c)
	return p.forward(c, http.MethodPost, "/design", nil, req)
}

// ValidateIndicators proxies POST /design/validate-indicators with the body
// untouched, so both {indicators} and {strategyText} are accepted.
func (p *ProxyHandler) ValidateIndicators(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxProxyBody))
	if err != nil || !gjson.ValidBytes(raw) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return p.forward(c, http.MethodPost, "/design/validate-indicators", nil, json.RawMessage(raw))
}

// Generate proxies POST /generate. The platform must be ninja or pine.
func (p *ProxyHandler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	switch req.Platform {
	case "ninja", "pine":
	case "":
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "platform is required"})
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "platform must be ninja or pine"})
	}
	req.UserID = UserID(c)
	return p.forward(c, http.MethodPost, "/generate", nil, req)
}

// GenerationJob proxies GET /generate/:jobId.
func (p *ProxyHandler) GenerationJob(c echo.Context) error {
	jobID := c.Param("jobId")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "jobId is required")
	}
	return p.forward(c, http.MethodGet, "/generate/"+url.PathEscape(jobID), nil, nil)
}

// Evolve proxies POST /evolve. The body is either {trades: [...]} or the raw
// text of a backtest export, from which every number is taken as a trade.
func (p *ProxyHandler) Evolve(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxProxyBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	var req EvolveRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
	} else {
		req.Trades = parseTrades(string(raw))
	}

	if len(req.Trades) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No numeric values found in file"})
	}
	req.UserID = UserID(c)
	return p.forward(c, http.MethodPost, "/evolve", nil, req)
}

// Scenarios proxies GET /scenarios.
func (p *ProxyHandler) Scenarios(c echo.Context) error {
	return p.forward(c, http.MethodGet, "/scenarios", nil, nil)
}

func (p *ProxyHandler) forward(c echo.Context, method, path string, query url.Values, body any) error {
	ctx := c.Request().Context()

	status, raw, err := p.do(ctx, method, path, query, body)
	if err != nil {
		log.WithCtx(ctx).Error("Error proxying to backend",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSONBlob(status, raw)
}

func (p *ProxyHandler) do(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return 0, nil, fmt.Errorf("backend answered %d with a non-JSON body", resp.StatusCode)
	}
	return resp.StatusCode, raw, nil
}

// parseTrades extracts every finite number of a comma, space or newline
// separated export. Other tokens are skipped.
func parseTrades(text string) []float64 {
	var values []float64
	for _, line := range lineBreaks.Split(text, -1) {
		for _, token := range tradeSeparators.Split(line, -1) {
			if token == "" {
				continue
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values = append(values, v)
		}
	}
	return values
}
