package config

import "strings"

const (
	allowedHostsVar         = "SNOWGATE_ALLOWED_HOSTS"
	allowedClientsVar       = "SNOWGATE_ALLOWED_CLIENTS"
	fixRedirectURIsVar      = "SNOWGATE_FIX_REDIRECT_URIS"
	allowedWebFingerHostVar = "SNOWGATE_ALLOWED_WEBFINGER_HOSTS"
)

type SecurityConfig interface {
	GetAllowedHosts() AllowList
	GetAllowedClients() AllowList
	GetFixRedirectURIs() bool
	GetAllowedWebFingerHosts() AllowList
}

type Security struct{}

var _ SecurityConfig = Security{}

// AllowList is a comma-separated allow-list value. A "*" entry matches
// everything; "*.domain" entries match subdomains.
type AllowList []string

func (a AllowList) Contains(value string) bool {
	for _, entry := range a {
		if entry == "*" || entry == value {
			return true
		}
		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if strings.HasSuffix(value, "."+suffix) || value == suffix {
				return true
			}
		}
	}
	return false
}

func parseAllowList(raw string) AllowList {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	list := make(AllowList, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

// GetAllowedHosts returns the hosts this service may be addressed as.
// Requests for any other Host header are rejected.
func (Security) GetAllowedHosts() AllowList {
	return parseAllowList(GetEnv(allowedHostsVar, ""))
}

// GetAllowedClients returns the relying-party client IDs permitted at
// /authorize. Defaults to the wildcard.
func (Security) GetAllowedClients() AllowList {
	return parseAllowList(GetEnv(allowedClientsVar, "*"))
}

// GetFixRedirectURIs reports whether redirect URIs outside the /r callback
// namespace are rewritten into it instead of rejected.
func (Security) GetFixRedirectURIs() bool {
	return GetEnv(fixRedirectURIsVar, "false") == "true"
}

func (Security) GetAllowedWebFingerHosts() AllowList {
	return parseAllowList(GetEnv(allowedWebFingerHostVar, ""))
}
