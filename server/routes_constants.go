package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteRoot   = "/{$}"
	RouteHealth = "/health"

	// OAuth2 / OIDC Routes
	RouteAuthorize = "/authorize"
	RouteToken     = "/token"
	RouteUserInfo  = "/userinfo"

	// Callback namespace: Discord redirects back to /r/{original redirect URI}
	RouteRedirect = "/r"
	RouteCallback = "/r/{redirect_uri...}"

	// Discovery Routes
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteWellKnownWebFinger    = "/.well-known/webfinger"
)
