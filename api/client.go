package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// UserProfile is the backend's representation of the signed-in user.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
}

// AuthResponse is the session envelope returned by the credential-exchange
// endpoints.
type AuthResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         UserProfile `json:"user"`
}

// Client provides typed access to the backend auth endpoints through the
// Gateway.
type Client struct {
	gateway *Gateway
}

// NewClient creates a Client on top of gateway.
func NewClient(gateway *Gateway) (*Client, error) {
	if gateway == nil {
		return nil, errors.New("[api.NewClient] gateway is required")
	}
	return &Client{gateway: gateway}, nil
}

// Login exchanges email/password credentials for an application session.
// Invalid credentials surface as ErrUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var resp AuthResponse
	if err := c.gateway.Do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and its first session. An existing account
// surfaces as ErrConflict.
func (c *Client) Register(ctx context.Context, email, password, username string) (*AuthResponse, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}{Email: email, Password: password, Username: username}

	var resp AuthResponse
	if err := c.gateway.Do(ctx, http.MethodPost, "/auth/register", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProviderLogin exchanges an external identity-provider credential for an
// application session. A failed exchange surfaces as ErrUnauthorized.
func (c *Client) ProviderLogin(ctx context.Context, providerToken string) (*AuthResponse, error) {
	body := struct {
		ProviderToken string `json:"providerToken"`
	}{ProviderToken: providerToken}

	var resp AuthResponse
	if err := c.gateway.Do(ctx, http.MethodPost, "/auth/provider-login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the server-side session. Local logout is expected to
// proceed regardless of this call's outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.gateway.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// VerifyToken asks the backend whether the current token is still valid.
// Any non-2xx answer is treated as invalid; only transport failures return
// an error.
func (c *Client) VerifyToken(ctx context.Context) (bool, error) {
	err := c.gateway.Do(ctx, http.MethodPost, "/auth/verify-token", nil, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNetwork) {
		return false, err
	}
	return false, nil
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}{CurrentPassword: currentPassword, NewPassword: newPassword}

	return c.gateway.Do(ctx, http.MethodPost, "/auth/update-password", body, nil)
}

// ForgotPassword triggers a reset email. Unknown identifiers resolve as
// success so the endpoint cannot be used to probe for account existence.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}

	err := c.gateway.Do(ctx, http.MethodPost, "/auth/forgot-password", body, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ResetPassword consumes a reset token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := struct {
		ResetToken  string `json:"resetToken"`
		NewPassword string `json:"newPassword"`
	}{ResetToken: resetToken, NewPassword: newPassword}

	return c.gateway.Do(ctx, http.MethodPost, "/auth/reset-password", body, nil)
}
