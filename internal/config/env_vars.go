package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar = "PORT"
	appNameVar = "SNOWGATE_APP_NAME"
	baseURLVar = "SNOWGATE_BASE_URL"
	keyFileVar = "SNOWGATE_KEY_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Snowgate")
}

// GetBaseURL returns the public base URL of this service (e.g.,
// "https://auth.example.com"). It is used as the token issuer and to build
// all advertised endpoint URLs.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetKeyFile returns the path of the persisted signing key file, the only
// durable artifact this service writes.
func (EnvVars) GetKeyFile() string {
	return GetEnv(keyFileVar, "data/keys/signing_key.json")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
