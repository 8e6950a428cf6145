package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	stdoauth2 "golang.org/x/oauth2"

	"github.com/snowgate-dev/snowgate/authflow"
	"github.com/snowgate-dev/snowgate/claims"
	"github.com/snowgate-dev/snowgate/discord"
	"github.com/snowgate-dev/snowgate/internal/errors"
	"github.com/snowgate-dev/snowgate/oauth2"
)

// authorizeParams are the query parameters /authorize consumes itself. Any
// other parameter is passed through to Discord untouched.
var authorizeParams = map[string]bool{
	"client_id":     true,
	"client_secret": true,
	"scope":         true,
	"redirect_uri":  true,
	"state":         true,
	"nonce":         true,
	"response_type": true,
}

// Authorize begins the flow: validate the request, pack the transaction into
// a signed state token, and redirect the user to Discord. All validation
// happens before any redirect is issued.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		clientID := query.Get("client_id")
		redirectURI := query.Get("redirect_uri")

		if clientID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
			return
		}
		if !s.config.GetAllowedClients().Contains(clientID) {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("client ID %s is not allowed", clientID))
			return
		}

		if !isSecureTransport(redirectURI) {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"redirect URIs must be either HTTPS or localhost")
			return
		}

		fixedRedirectURI := s.fixRedirectURI(redirectURI)
		if redirectURI != fixedRedirectURI && !s.config.GetFixRedirectURIs() {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("redirect URI must be a subpath of %s", s.issuerURL+RouteRedirect))
			return
		}

		scopes := strings.Fields(query.Get("scope"))
		if !claims.HasScope(scopes, "openid") {
			writeError(w, http.StatusBadRequest, "invalid_scope", "openid scope is required")
			return
		}

		packedState, err := s.flows.PackState(authflow.State{
			Scopes:      scopes,
			ClientState: query.Get("state"),
			Nonce:       query.Get("nonce"),
			RedirectURI: s.redirectTarget(fixedRedirectURI),
		})
		if err != nil {
			log.Err(err).Msg("failed to pack transaction state")
			writeError(w, http.StatusInternalServerError, "server_error", "")
			return
		}

		passthrough := make(map[string]string)
		for name := range query {
			if !authorizeParams[name] {
				passthrough[name] = query.Get(name)
			}
		}

		discordClient := s.discord.NewClient(clientID, "", discord.TranslateScopes(scopes))
		http.Redirect(w, r, discordClient.AuthCodeURL(fixedRedirectURI, packedState, passthrough), http.StatusFound)
	}
}

// Callback receives the redirect from Discord, recovers the transaction from
// the state token, wraps Discord's code, and forwards the user to the
// relying party. Upstream errors are passed through.
func (s *Server) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		state, err := s.flows.UnpackState(query.Get("state"))
		if err != nil {
			// Expired, tampered and malformed all collapse to the same
			// answer; the distinction is an oracle.
			writeError(w, http.StatusBadRequest, "invalid_request", "mismatching state")
			return
		}

		pathTarget := normalizeRedirectTarget(r.PathValue("redirect_uri"))
		if !sameRedirectTarget(pathTarget, state.RedirectURI) {
			writeError(w, http.StatusBadRequest, "invalid_request", "mismatching state")
			return
		}

		target, err := url.Parse(pathTarget)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "mismatching state")
			return
		}

		// Rebuild the relying party's URL from the inbound query: drop the
		// packed state, echo the client's original state verbatim.
		outbound := r.URL.Query()
		outbound.Del("state")
		if state.ClientState != "" {
			outbound.Set("state", state.ClientState)
		}

		if query.Get("error") != "" {
			// Upstream denial: pass the error through, never a code.
			outbound.Del("code")
		}

		if code := query.Get("code"); code != "" && query.Get("error") == "" {
			wrapped, err := s.flows.WrapCode(authflow.WrappedCode{
				Code:   code,
				Scopes: state.Scopes,
				Nonce:  state.Nonce,
			})
			if err != nil {
				log.Err(err).Msg("failed to wrap authorization code")
				writeError(w, http.StatusInternalServerError, "server_error", "")
				return
			}
			outbound.Set("code", wrapped)
		}

		target.RawQuery = outbound.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

// Token redeems a wrapped authorization code: unwrap it, exchange the
// embedded Discord code upstream, and issue the signed token pair.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
			return
		}

		formClientID := r.PostFormValue("client_id")
		formClientSecret := r.PostFormValue("client_secret")
		basicClientID, basicClientSecret, hasBasic := r.BasicAuth()

		if (formClientID != "" || formClientSecret != "") && hasBasic {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"cannot supply both client_secret_basic and client_secret_post authentication")
			return
		}

		clientID, clientSecret := formClientID, formClientSecret
		if hasBasic {
			clientID, clientSecret = basicClientID, basicClientSecret
		}
		if clientID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "client ID is required")
			return
		}

		wrapped, err := s.flows.UnwrapCode(r.PostFormValue("code"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_grant", "invalid authorization code")
			return
		}

		discordClient := s.discord.NewClient(clientID, clientSecret, nil)

		discordToken, err := discordClient.Exchange(r.Context(),
			wrapped.Code, s.fixRedirectURI(r.PostFormValue("redirect_uri")))
		if err != nil {
			s.writeExchangeError(w, err)
			return
		}

		pair, err := s.issuer.Issue(r.Context(), discordClient, discordToken, wrapped)
		if err != nil {
			log.Err(err).Msg("token issuance failed")
			if errors.Is(err, errors.ErrUpstream) {
				writeError(w, http.StatusBadGateway, "upstream_error", "upstream request failed")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error", "")
			return
		}

		writeJSON(w, http.StatusOK, oauth2.TokenResponse{
			AccessToken:  pair.AccessToken,
			TokenType:    "Bearer",
			ExpiresAt:    pair.ExpiresAt,
			IdToken:      pair.IDToken,
			RefreshToken: discordToken.RefreshToken,
		})
	}
}

// writeExchangeError distinguishes Discord rejecting the code (a client
// error, e.g. reuse of a single-use code) from Discord being unreachable.
func (s *Server) writeExchangeError(w http.ResponseWriter, err error) {
	var retrieveErr *stdoauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
		writeError(w, http.StatusBadRequest, "invalid_grant", "authorization code was not accepted upstream")
		return
	}
	log.Err(err).Msg("upstream token exchange failed")
	writeError(w, http.StatusBadGateway, "upstream_error", "upstream request failed")
}
