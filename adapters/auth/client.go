package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/edge-assistant/domain"
)

var ErrLoginFailed = errors.New("login failed")

// Client signs in against the login endpoint of the API.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Login implements domain.Authenticator.
func (c *Client) Login(ctx context.Context, email string) (domain.User, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return domain.User{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.User{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.User{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if msg := gjson.GetBytes(raw, "message"); msg.Type == gjson.String {
			return domain.User{}, fmt.Errorf("%w: %s", ErrLoginFailed, msg.String())
		}
		return domain.User{}, fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	token := gjson.GetBytes(raw, "token")
	userID := gjson.GetBytes(raw, "userId")
	if token.Type != gjson.String || userID.Type != gjson.String {
		return domain.User{}, fmt.Errorf("%w: malformed response", ErrLoginFailed)
	}

	return domain.User{ID: userID.String(), Email: email, Token: token.String()}, nil
}
