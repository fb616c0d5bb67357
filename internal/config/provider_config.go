package config

import "strings"

type ProviderConfig interface {
	GetIssuerURL() string
	GetProviderClientID() string
	GetProviderClientSecret() string
	GetProviderScopes() []string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetIssuerURL returns the OIDC issuer of the external identity provider.
// Empty means no provider is configured and the demo falls back to a fake.
func (Provider) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "")
}

func (Provider) GetProviderClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Provider) GetProviderClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Provider) GetProviderScopes() []string {
	scopes := GetEnv("OIDC_SCOPES", "")
	if scopes == "" {
		return nil
	}
	return strings.Fields(scopes)
}
