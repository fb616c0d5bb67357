package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/token"
)

var _ token.Refresher = (*RefreshEndpoint)(nil)

// RefreshEndpoint calls POST /auth/refresh-token with its own plain HTTP
// client. It deliberately bypasses the Gateway: the refresh exchange is
// unauthenticated and must never recurse into the token-attachment path it
// exists to serve.
type RefreshEndpoint struct {
	httpClient *http.Client
	baseURL    string
}

// RefreshEndpointOption defines a function type to modify the RefreshEndpoint instance.
type RefreshEndpointOption func(*RefreshEndpoint)

// WithRefreshHTTPClient overrides the HTTP client (primarily for testing).
func WithRefreshHTTPClient(client *http.Client) RefreshEndpointOption {
	return func(r *RefreshEndpoint) {
		r.httpClient = client
	}
}

// NewRefreshEndpoint creates the refresh exchange client.
func NewRefreshEndpoint(baseURL string, options ...RefreshEndpointOption) *RefreshEndpoint {
	r := &RefreshEndpoint{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Refresh exchanges refreshToken for a new token pair. Any non-2xx answer
// is a refresh failure. A response that does not rotate the refresh token
// returns a pair with an empty RefreshToken, which keeps the stored one.
func (r *RefreshEndpoint) Refresh(ctx context.Context, refreshToken string) (session.Pair, error) {
	payload, err := json.Marshal(struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken})
	if err != nil {
		return session.Pair{}, errors.Wrap(err, "RefreshEndpoint.Refresh marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh-token", bytes.NewReader(payload))
	if err != nil {
		return session.Pair{}, errors.Wrap(err, "RefreshEndpoint.Refresh NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return session.Pair{}, errors.Wrap(ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.Pair{}, errors.Wrap(ErrNetwork, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := serverMessage(respBody)
		if message == "" {
			message = resp.Status
		}
		return session.Pair{}, errors.Errorf("RefreshEndpoint.Refresh: %s", message)
	}

	var out struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return session.Pair{}, errors.Wrap(err, "RefreshEndpoint.Refresh decode")
	}
	if out.Token == "" {
		return session.Pair{}, errors.New("RefreshEndpoint.Refresh: response missing token")
	}

	return session.Pair{AccessToken: out.Token, RefreshToken: out.RefreshToken}, nil
}
