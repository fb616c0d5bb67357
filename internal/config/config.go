package config

type Config interface {
	EnvConfig
	AuthConfig
	ProviderConfig
}

type mainConfig struct {
	EnvVars
	Auth
	Provider
}

func New() Config {
	return mainConfig{}
}
