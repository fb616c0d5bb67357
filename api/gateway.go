// Package api wraps every outbound call to the application backend. The
// Gateway attaches the current bearer token, refreshes it when it is about
// to expire, and replays a call exactly once after a 401 triggers a refresh.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/token"
)

// DefaultTimeout bounds every outbound call; exceeding it surfaces as
// ErrNetwork.
const DefaultTimeout = 10 * time.Second

// Gateway performs JSON calls against the backend with a before-send token
// step and an after-receive authorization-failure step.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	store      session.Store
	tokens     *token.Manager
	log        zerolog.Logger
}

// GatewayOption defines a function type to modify the Gateway instance.
type GatewayOption func(*Gateway)

// WithHTTPClient overrides the HTTP client (primarily for testing).
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithLogger sets the logger, which is silent by default.
func WithLogger(log zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.log = log
	}
}

// NewGateway creates a Gateway for the backend at baseURL.
func NewGateway(baseURL string, store session.Store, tokens *token.Manager, options ...GatewayOption) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("[api.NewGateway] store is required")
	}
	if tokens == nil {
		return nil, errors.New("[api.NewGateway] token manager is required")
	}

	g := &Gateway{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		tokens:     tokens,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Do performs a JSON call. A non-nil body is marshalled as the request
// payload; a non-nil out receives the decoded 2xx response body.
//
// Before send: the stored access token, when present, is validated and
// refreshed if needed, then attached as a bearer header. Absent token means
// the call goes out unauthenticated.
//
// After receive: a 401 triggers one refresh-and-replay cycle. Callers that
// hit a 401 while a refresh is already in flight block on the shared refresh
// and are released as a batch when it settles; if it fails they receive the
// refresh failure, not their original 401. No other status is retried.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return errors.Wrap(err, "Gateway.Do marshal body")
	}

	bearer, err := g.bearerToken(ctx)
	if err != nil {
		return err
	}

	status, respBody, err := g.send(ctx, method, path, payload, bearer)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && bearer != "" {
		newToken, refreshErr := g.tokens.Refresh(ctx)
		if refreshErr != nil {
			return refreshErr
		}
		g.log.Debug().Str("path", path).Msg("replaying request after token refresh")
		status, respBody, err = g.send(ctx, method, path, payload, newToken)
		if err != nil {
			return err
		}
	}

	if err := mapStatus(status, respBody); err != nil {
		return errors.Wrapf(err, "Gateway.Do %s %s", method, path)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "Gateway.Do decode %s %s", method, path)
		}
	}
	return nil
}

// bearerToken implements the before-send step. It returns "" when no token
// is stored; when the stored token is stale and a refresh token exists, the
// refresh runs first and its result is attached instead.
func (g *Gateway) bearerToken(ctx context.Context) (string, error) {
	accessToken, ok, err := g.store.Get(ctx, session.AccessTokenKey)
	if err != nil {
		return "", errors.Wrap(err, "Gateway.bearerToken Get")
	}
	if !ok || accessToken == "" {
		return "", nil
	}
	if g.tokens.Validate(accessToken) {
		return accessToken, nil
	}

	refreshToken, ok, err := g.store.Get(ctx, session.RefreshTokenKey)
	if err != nil {
		return "", errors.Wrap(err, "Gateway.bearerToken Get refresh")
	}
	if !ok || refreshToken == "" {
		// Nothing to refresh with; let the server decide what the stale
		// token is still good for.
		return accessToken, nil
	}

	return g.tokens.Refresh(ctx)
}

func (g *Gateway) send(ctx context.Context, method, path string, payload []byte, bearer string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, errors.Wrap(err, "Gateway.send NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("request transport failure")
		return 0, nil, errors.Wrap(ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(ErrNetwork, err.Error())
	}
	return resp.StatusCode, respBody, nil
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

// mapStatus converts a non-2xx status into the package error taxonomy.
func mapStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message := serverMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return wrapWithMessage(ErrUnauthorized, message)
	case http.StatusForbidden:
		return wrapWithMessage(ErrPermissionDenied, message)
	case http.StatusNotFound:
		return wrapWithMessage(ErrNotFound, message)
	case http.StatusConflict:
		return wrapWithMessage(ErrConflict, message)
	case http.StatusTooManyRequests:
		return wrapWithMessage(ErrRateLimited, message)
	default:
		if message != "" {
			return fmt.Errorf("unexpected status %d: %s", status, message)
		}
		return fmt.Errorf("unexpected status %d", status)
	}
}

func wrapWithMessage(sentinel error, message string) error {
	if message == "" {
		return sentinel
	}
	return errors.Wrap(sentinel, message)
}

// serverMessage extracts the backend's error text, when it sent one.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}
