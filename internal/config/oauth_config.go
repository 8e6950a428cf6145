package config

import "time"

const (
	tokenLifetimeVar = "SNOWGATE_TOKEN_LIFETIME"
)

type OAuthConfig interface {
	GetTokenLifetime() time.Duration
	GetStateLifetime() time.Duration
	GetCodeLifetime() time.Duration
	GetUpstreamTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetTokenLifetime returns the lifetime of issued access and ID tokens.
// Values below 60 seconds are rejected by Validate.
func (OAuth) GetTokenLifetime() time.Duration {
	raw := GetEnv(tokenLifetimeVar, "1h")
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Hour
	}
	return d
}

// GetStateLifetime bounds the window between the /authorize redirect and the
// callback from Discord.
func (OAuth) GetStateLifetime() time.Duration {
	return 5 * time.Minute
}

// GetCodeLifetime bounds the window between the callback and redemption at
// /token. Codes are expected to be redeemed immediately.
func (OAuth) GetCodeLifetime() time.Duration {
	return 5 * time.Minute
}

func (OAuth) GetUpstreamTimeout() time.Duration {
	return 10 * time.Second
}
