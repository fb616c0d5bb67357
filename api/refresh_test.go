package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/api"
)

func TestRefreshEndpointExchange(t *testing.T) {
	var seen struct {
		RefreshToken string `json:"refreshToken"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh-token", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"), "the refresh exchange is unauthenticated")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "T2", "refreshToken": "R2"})
	}))
	defer server.Close()

	pair, err := api.NewRefreshEndpoint(server.URL).Refresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "R1", seen.RefreshToken)
	require.Equal(t, "T2", pair.AccessToken)
	require.Equal(t, "R2", pair.RefreshToken)
}

func TestRefreshEndpointUnrotatedRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "T2"})
	}))
	defer server.Close()

	pair, err := api.NewRefreshEndpoint(server.URL).Refresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "T2", pair.AccessToken)
	require.Empty(t, pair.RefreshToken, "an unrotated refresh token comes back empty so the stored one is kept")
}

func TestRefreshEndpointRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "refresh token revoked"})
	}))
	defer server.Close()

	_, err := api.NewRefreshEndpoint(server.URL).Refresh(context.Background(), "R1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "refresh token revoked")
}

func TestRefreshEndpointMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"refreshToken": "R2"})
	}))
	defer server.Close()

	_, err := api.NewRefreshEndpoint(server.URL).Refresh(context.Background(), "R1")
	require.Error(t, err)
}

func TestRefreshEndpointTransportFailure(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	_, err := api.NewRefreshEndpoint(server.URL).Refresh(context.Background(), "R1")
	require.ErrorIs(t, err, api.ErrNetwork)
}
