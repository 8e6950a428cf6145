package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/snowgate-dev/snowgate/claims"
	"github.com/snowgate-dev/snowgate/oauth2"
	"github.com/snowgate-dev/snowgate/token"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.issuerURL

		scopesSupported := []string{"openid", "profile", "email"}
		claimsSupported := make([]string, 0, len(claims.Supported))
		for _, c := range claims.Supported {
			if c == "groups" && !s.config.GetGuildsScopeEnabled() {
				continue
			}
			claimsSupported = append(claimsSupported, c)
		}
		if s.config.GetGuildsScopeEnabled() {
			scopesSupported = append(scopesSupported, "groups")
		}

		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteAuthorize,
			"token_endpoint":         baseURL + RouteToken,
			"userinfo_endpoint":      baseURL + RouteUserInfo,
			"jwks_uri":               baseURL + RouteWellKnownJWKS,

			"response_types_supported": []string{"code"},
			"subject_types_supported":  []string{"public"},

			"id_token_signing_alg_values_supported": []string{"RS256"},

			"scopes_supported": scopesSupported,
			"claims_supported": claimsSupported,

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
			},

			"grant_types_supported": []string{"authorization_code"},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, resp)
	}
}

// JWKS returns the public JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.keyStore.JWKS()
		if err != nil {
			log.Err(err).Msg("failed to load JWKS")
			writeError(w, http.StatusInternalServerError, "server_error", "")
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, jwks)
	}
}

// UserInfo returns the claims of a Bearer access token. The data matches
// what the ID token already carries; only claims whose scope was granted
// appear.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || rawToken == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}

		accessClaims, err := s.codec.Decode(rawToken,
			token.WithIssuer(s.issuerURL),
			token.WithRequiredClaims("sub"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer error=\"invalid_token\"")
			writeError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}

		userinfo := make(map[string]any)
		for _, name := range claims.Supported {
			if value, present := accessClaims[name]; present {
				userinfo[name] = value
			}
		}

		// This should not be possible but you never know.
		if len(userinfo) == 0 {
			writeError(w, http.StatusForbidden, "insufficient_scope", "")
			return
		}

		writeJSON(w, http.StatusOK, userinfo)
	}
}

// WebFinger implements limited support for the WebFinger protocol: it maps
// acct: email resources on permitted domains to this issuer.
func (s *Server) WebFinger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")

		address, ok := strings.CutPrefix(resource, "acct:")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "resource must be an acct: URI")
			return
		}

		local, domain, found := strings.Cut(address, "@")
		if !found || local == "" || domain == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "resource must be an email address")
			return
		}

		if !s.config.GetAllowedWebFingerHosts().Contains(domain) {
			writeError(w, http.StatusNotFound, "not_found", "")
			return
		}

		writeJSON(w, http.StatusOK, oauth2.WebFingerResponse{
			Subject: resource,
			Links: []oauth2.WebFingerLink{
				{
					Rel:  "http://openid.net/specs/connect/1.0/issuer",
					Href: s.issuerURL,
				},
			},
		})
	}
}
