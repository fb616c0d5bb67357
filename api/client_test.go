package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/session"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*api.Client, *gatewayFixture) {
	t.Helper()

	f := newGatewayFixture(t, handler)
	client, err := api.NewClient(f.gateway)
	require.NoError(t, err)
	return client, f
}

func authResponseJSON(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(api.AuthResponse{
		Token:        "T1",
		RefreshToken: "R1",
		User: api.UserProfile{
			ID:       "user-1",
			Username: "alice",
			Email:    "alice@example.com",
		},
	}))
}

func TestLogin(t *testing.T) {
	var seen struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		authResponseJSON(t, w)
	})

	resp, err := client.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", seen.Email)
	require.Equal(t, "secret", seen.Password)
	require.Equal(t, "T1", resp.Token)
	require.Equal(t, "alice", resp.User.Username)
}

func TestLoginInvalidCredentials(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	})

	_, err := client.Login(context.Background(), "alice@example.com", "wrong")
	require.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestRegisterConflict(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	})

	_, err := client.Register(context.Background(), "alice@example.com", "secret", "alice")
	require.ErrorIs(t, err, api.ErrConflict)
}

func TestProviderLogin(t *testing.T) {
	var seen struct {
		ProviderToken string `json:"providerToken"`
	}
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/provider-login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		authResponseJSON(t, w)
	})

	resp, err := client.ProviderLogin(context.Background(), "idp-credential")
	require.NoError(t, err)
	require.Equal(t, "idp-credential", seen.ProviderToken)
	require.Equal(t, "user-1", resp.User.ID)
}

func TestVerifyToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		ok, err := client.VerifyToken(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("rejected", func(t *testing.T) {
		client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		ok, err := client.VerifyToken(context.Background())
		require.NoError(t, err, "a definitive rejection is not an error")
		require.False(t, ok)
	})

	t.Run("transport failure", func(t *testing.T) {
		client, f := newClient(t, nil)
		f.server.Close()
		ok, err := client.VerifyToken(context.Background())
		require.ErrorIs(t, err, api.ErrNetwork)
		require.False(t, ok)
	})
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/forgot-password", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.ForgotPassword(context.Background(), "nobody@example.com")
	require.NoError(t, err, "unknown identifiers must not be distinguishable")
}

func TestUpdatePasswordIsAuthenticated(t *testing.T) {
	validToken := mintToken(t, "user-1", time.Now().Add(time.Hour))

	var seenAuth string
	client, f := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/update-password", r.URL.Path)
		seenAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	f.storePair(t, session.Pair{AccessToken: validToken, RefreshToken: "R1"})

	require.NoError(t, client.UpdatePassword(context.Background(), "old", "new"))
	require.Equal(t, "Bearer "+validToken, seenAuth)
}

func TestResetPassword(t *testing.T) {
	var seen struct {
		ResetToken  string `json:"resetToken"`
		NewPassword string `json:"newPassword"`
	}
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/reset-password", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.ResetPassword(context.Background(), "reset-1", "new-secret"))
	require.Equal(t, "reset-1", seen.ResetToken)
	require.Equal(t, "new-secret", seen.NewPassword)
}
