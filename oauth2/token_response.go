// Package oauth2 holds the wire types returned by the OAuth2/OIDC endpoints.
package oauth2

// TokenResponse is the /token endpoint response. Mirrors RFC 6749 with the
// OIDC id_token extension.
type TokenResponse struct {
	// AccessToken is the signed JWT accepted by the userinfo endpoint.
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresAt is the Unix timestamp at which both tokens expire. The
	// authoritative value is the JWT exp claim; this is a convenience copy.
	ExpiresAt int64 `json:"expires_at"`

	// IdToken is the OpenID Connect ID token. Its audience is the relying
	// party's client ID and it carries the request nonce when one was given.
	IdToken string `json:"id_token"`

	// RefreshToken is Discord's refresh token passed through untouched.
	// This service implements no refresh grant; the value is only useful to
	// clients that talk to Discord directly.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the JSON error body for all endpoints. Descriptions stay
// coarse: token validation failures never reveal why they failed.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WebFingerLink is one link relation in a WebFinger response.
type WebFingerLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// WebFingerResponse implements the subset of WebFinger needed for OIDC
// issuer discovery.
type WebFingerResponse struct {
	Subject string          `json:"subject"`
	Links   []WebFingerLink `json:"links"`
}
