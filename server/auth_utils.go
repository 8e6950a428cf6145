package server

import (
	"net/url"
	"strings"
)

// isSecureTransport returns true if the given URL is HTTPS or points at a
// loopback address.
func isSecureTransport(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "https" || isLoopbackHost(u.Hostname())
}

// callbackPrefix is the namespace every redirect URI must live under:
// Discord always redirects back through this service.
func (s *Server) callbackPrefix() string {
	return s.issuerURL + RouteRedirect + "/"
}

// fixRedirectURI rewrites a relying-party redirect URI to be a subpath of
// the /r callback endpoint. URIs already in the namespace pass unchanged.
func (s *Server) fixRedirectURI(redirectURI string) string {
	if !strings.HasPrefix(redirectURI, s.callbackPrefix()) {
		return s.callbackPrefix() + redirectURI
	}
	return redirectURI
}

// redirectTarget extracts the relying party's own redirect URI from a fixed
// one.
func (s *Server) redirectTarget(fixedRedirectURI string) string {
	return strings.TrimPrefix(fixedRedirectURI, s.callbackPrefix())
}

// normalizeRedirectTarget repairs scheme double-slashes that path cleaning
// collapses when the redirect URI travels as path segments of /r.
func normalizeRedirectTarget(raw string) string {
	for _, scheme := range []string{"https", "http"} {
		if strings.HasPrefix(raw, scheme+":/") && !strings.HasPrefix(raw, scheme+"://") {
			return scheme + "://" + strings.TrimPrefix(raw, scheme+":/")
		}
	}
	return raw
}

// sameRedirectTarget compares two redirect URIs on scheme, host and path,
// ignoring query strings (the target's own query travels separately).
func sameRedirectTarget(a, b string) bool {
	ua, errA := url.Parse(normalizeRedirectTarget(a))
	ub, errB := url.Parse(normalizeRedirectTarget(b))
	if errA != nil || errB != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host && strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}
