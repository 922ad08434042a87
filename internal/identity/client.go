package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/taskgate/taskgate/internal/platform/httpx"
)

// Client calls the token service's verification endpoint over HTTP. It is
// used by the gateway and by downstream services on the direct-verification
// fallback path. Calls are single-attempt and time-bounded.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a verification client against the token service.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type validateResponse struct {
	Valid bool `json:"valid"`
	User  struct {
		ID        int64  `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user"`
}

// Verify exchanges an access token for a VerifiedIdentity. A rejection maps
// to ErrInvalidToken; an unreachable, slow, or failing token service maps to
// httpx.ErrUnavailable, never to an indefinite wait.
func (c *Client) Verify(ctx context.Context, accessToken string) (*VerifiedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: verify call: %w", httpx.ErrUnavailable)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("identity: verify upstream %d: %w", res.StatusCode, httpx.ErrUnavailable)
	}
	if res.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}
	var payload validateResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("identity: decode verify response: %w", err)
	}
	if !payload.Valid {
		return nil, ErrInvalidToken
	}
	return &VerifiedIdentity{
		UserID:      payload.User.ID,
		Email:       payload.User.Email,
		DisplayName: payload.User.FirstName + " " + payload.User.LastName,
		Source:      SourceDirect,
	}, nil
}
