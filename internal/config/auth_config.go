package config

import "time"

type AuthConfig interface {
	GetRefreshThreshold() time.Duration
	GetRequestTimeout() time.Duration
	GetMaxLoginAttempts() int
	GetAttemptWindow() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetRefreshThreshold returns how close to expiry an access token may get
// before it is refreshed pre-emptively.
func (Auth) GetRefreshThreshold() time.Duration {
	return 5 * time.Minute
}

func (Auth) GetRequestTimeout() time.Duration {
	return 10 * time.Second
}

func (Auth) GetMaxLoginAttempts() int {
	return 5
}

func (Auth) GetAttemptWindow() time.Duration {
	return 15 * time.Minute
}
