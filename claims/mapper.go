// Package claims maps granted scopes to OIDC claims and issues the signed
// access/ID token pair.
package claims

import (
	"github.com/snowgate-dev/snowgate/discord"
)

// Supported lists every claim this service can put in a token. The userinfo
// endpoint filters to this set and the discovery document advertises it.
var Supported = []string{
	"sub",
	"name",
	"preferred_username",
	"locale",
	"picture",
	"email",
	"email_verified",
	"groups",
}

// scopeMapping ties one scope to the claims it produces. Producers are pure
// over the raw user record and run in table order so output is deterministic.
type scopeMapping struct {
	scope   string
	produce func(user *discord.User) map[string]any
}

var mappingTable = []scopeMapping{
	{scope: "profile", produce: profileClaims},
	{scope: "email", produce: emailClaims},
}

// MapScopes resolves the claims for the granted scopes. A scope that was not
// granted contributes nothing: its claims are absent, not null.
func MapScopes(scopes []string, user *discord.User) map[string]any {
	granted := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		granted[s] = true
	}

	resolved := map[string]any{
		"sub": user.ID,
	}
	for _, mapping := range mappingTable {
		if !granted[mapping.scope] {
			continue
		}
		for name, value := range mapping.produce(user) {
			resolved[name] = value
		}
	}
	return resolved
}

func profileClaims(user *discord.User) map[string]any {
	claims := map[string]any{
		"name":               user.DisplayName(),
		"preferred_username": user.Username,
	}
	if user.Locale != "" {
		claims["locale"] = user.Locale
	}
	if picture := user.AvatarURL(); picture != "" {
		claims["picture"] = picture
	}
	return claims
}

func emailClaims(user *discord.User) map[string]any {
	return map[string]any{
		"email":          user.Email,
		"email_verified": user.Verified,
	}
}

// HasScope reports whether the scope appears in the granted set.
func HasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
