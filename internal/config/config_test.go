package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.New()

	require.Equal(t, "Go Auth Client", cfg.GetAppName())
	require.Equal(t, "http://localhost:3000/api", cfg.GetAPIBaseURL())
	require.Equal(t, "./data", cfg.GetDataFolder())
	require.Equal(t, "DEV", cfg.GetEnv())
	require.Equal(t, 5*time.Minute, cfg.GetRefreshThreshold())
	require.Equal(t, 5, cfg.GetMaxLoginAttempts())
	require.Empty(t, cfg.GetIssuerURL())
	require.Nil(t, cfg.GetProviderScopes())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/api")
	t.Setenv("ENV", "PROD")
	t.Setenv("OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("OIDC_SCOPES", "openid profile email")

	cfg := config.New()

	require.Equal(t, "https://api.example.com/api", cfg.GetAPIBaseURL())
	require.Equal(t, "PROD", cfg.GetEnv())
	require.Equal(t, "https://idp.example.com", cfg.GetIssuerURL())
	require.Equal(t, []string{"openid", "profile", "email"}, cfg.GetProviderScopes())
}
