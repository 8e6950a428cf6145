package config

import (
	"net/url"
	"time"

	"github.com/snowgate-dev/snowgate/internal/errors"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	FeatureConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetKeyFile() string
	GetEnv() string
}

type FeatureConfig interface {
	GetGuildsScopeEnabled() bool
	GetWebFingerEnabled() bool
	GetRootRedirectURL() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Features
}

func New() Config {
	return mainConfig{}
}

// Validate checks the configuration at startup. Any failure here is fatal:
// the process must not serve requests with a broken allow-list or base URL.
func Validate(c Config) error {
	if len(c.GetAllowedHosts()) == 0 {
		return errors.Wrapf(errors.ErrConfiguration, "%s must be set", allowedHostsVar)
	}

	base, err := url.Parse(c.GetBaseURL())
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.Wrapf(errors.ErrConfiguration, "%s %q is not an absolute URL", baseURLVar, c.GetBaseURL())
	}

	if c.GetTokenLifetime() < minTokenLifetime {
		return errors.Wrapf(errors.ErrConfiguration,
			"%s must be at least %s", tokenLifetimeVar, minTokenLifetime)
	}

	if c.GetRootRedirectURL() != "" {
		if _, err := url.Parse(c.GetRootRedirectURL()); err != nil {
			return errors.Wrapf(errors.ErrConfiguration, "invalid root redirect URL")
		}
	}

	return nil
}

const minTokenLifetime = 60 * time.Second
