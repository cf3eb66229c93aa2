package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const maxBodySize = 64 << 10

var (
	ErrMalformed      = errors.New("malformed subscription response")
	ErrUnexpectedCode = errors.New("unexpected status code")
)

// Client queries the subscription service. It serves both as the
// subscription source of the API and as the entitlement gate of chat surfaces.
type Client struct {
	endpoint string
	client   *http.Client
	token    func() string
}

func NewClient(endpoint string, timeout time.Duration, token func() string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		token:    token,
	}
}

// Subscription implements domain.SubscriptionSource.
func (c *Client) Subscription(ctx context.Context, userID string) (domain.Subscription, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("fetching subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Subscription{}, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("reading subscription: %w", err)
	}
	return parseSubscription(raw)
}

// CheckEntitlement implements domain.EntitlementGate.
func (c *Client) CheckEntitlement(ctx context.Context, userID string, phase domain.PhaseID) (bool, error) {
	sub, err := c.Subscription(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := sub.Entitlements.Allows(phase)
	log.WithCtx(ctx).Debug("Entitlement checked",
		zap.String("plan", sub.Plan),
		zap.Stringer("phase", phase),
		zap.Bool("allowed", allowed))
	return allowed, nil
}

// parseSubscription accepts only bodies carrying a plan and a boolean for
// every phase.
func parseSubscription(raw []byte) (domain.Subscription, error) {
	if !gjson.ValidBytes(raw) {
		return domain.Subscription{}, fmt.Errorf("%w: not JSON", ErrMalformed)
	}
	if plan := gjson.GetBytes(raw, "plan"); plan.Type != gjson.String {
		return domain.Subscription{}, fmt.Errorf("%w: plan is not a string", ErrMalformed)
	}
	for _, phase := range domain.Phases() {
		v := gjson.GetBytes(raw, "entitlements."+phase.String())
		if v.Type != gjson.True && v.Type != gjson.False {
			return domain.Subscription{}, fmt.Errorf("%w: entitlements.%s is not a boolean", ErrMalformed, phase)
		}
	}

	var sub domain.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sub, nil
}
