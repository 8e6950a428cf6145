package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snowgate-dev/snowgate/authflow"
	"github.com/snowgate-dev/snowgate/discord"
	"github.com/snowgate-dev/snowgate/internal/config"
	"github.com/snowgate-dev/snowgate/oauth2"
	"github.com/snowgate-dev/snowgate/server"
	"github.com/snowgate-dev/snowgate/token"
	"github.com/snowgate-dev/snowgate/token/keystore"
)

const (
	testBaseURL     = "http://localhost:8080"
	testClientID    = "relying-party"
	testRedirectURI = "https://app.example.com/cb"
	// Discord redirects back through the callback namespace.
	fixedRedirectURI = testBaseURL + "/r/" + testRedirectURI
	// What the browser actually requests after the URL travels as path
	// segments: path cleaning collapses the scheme's double slash.
	callbackPath = "/r/https:/app.example.com/cb"
)

// discordStub fakes Discord's token endpoint and user API.
type discordStub struct {
	tokenStatus  int
	lastExchange url.Values
}

func (d *discordStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/oauth2/token":
		_ = r.ParseForm()
		d.lastExchange = r.Form
		w.Header().Set("Content-Type", "application/json")
		if d.tokenStatus != 0 && d.tokenStatus != http.StatusOK {
			w.WriteHeader(d.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"discord-at","token_type":"Bearer","refresh_token":"discord-rt"}`))
	case "/users/@me":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "80351110224678912",
			"username":    "nelly",
			"global_name": "Nelly",
			"email":       "nelly@discord.com",
			"verified":    true,
		})
	case "/users/@me/guilds":
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "guild-1", "name": "First"},
			{"id": "guild-2", "name": "Second"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fixture struct {
	srv   *server.Server
	stub  *discordStub
	codec *token.Codec
	flows *authflow.Manager
}

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SNOWGATE_ALLOWED_HOSTS", "localhost")
	t.Setenv("SNOWGATE_BASE_URL", testBaseURL)
	t.Setenv("ENV", "TEST")
}

// newFixture builds a server against a stub Discord. Call setServerEnv (and
// any per-test overrides) before this.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	stub := &discordStub{}
	api := httptest.NewServer(stub)
	t.Cleanup(api.Close)

	store := keystore.New(filepath.Join(t.TempDir(), "signing_key.json"))
	codec := token.NewCodec(store)

	cfg := config.New()
	require.NoError(t, config.Validate(cfg))

	srv, err := server.New(cfg,
		server.WithKeyStore(store),
		server.WithDiscordFactory(discord.NewFactory(5*time.Second,
			discord.WithBaseURLs(api.URL+"/oauth2/authorize", api.URL+"/oauth2/token", api.URL))))
	require.NoError(t, err)

	return &fixture{
		srv:   srv,
		stub:  stub,
		codec: codec,
		flows: authflow.NewManager(codec, 5*time.Minute, 5*time.Minute),
	}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, testBaseURL+target, nil))
	return rec
}

func (f *fixture) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, testBaseURL+target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) oauth2.ErrorResponse {
	t.Helper()
	var body oauth2.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func authorizeQuery() url.Values {
	return url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {fixedRedirectURI},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"state":         {"client-opaque-state"},
		"nonce":         {"n-0S6_WzA2Mj"},
	}
}

func TestAuthorize(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	rec := f.get(t, server.RouteAuthorize+"?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/oauth2/authorize", location.Path)

	outbound := location.Query()
	require.Equal(t, testClientID, outbound.Get("client_id"))
	require.Equal(t, "code", outbound.Get("response_type"))
	require.Equal(t, fixedRedirectURI, outbound.Get("redirect_uri"))
	require.Equal(t, "identify email", outbound.Get("scope"))

	// The state parameter is our own signed transaction, not the client's.
	require.NotEqual(t, "client-opaque-state", outbound.Get("state"))
	state, err := f.flows.UnpackState(outbound.Get("state"))
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "profile", "email"}, state.Scopes)
	require.Equal(t, "client-opaque-state", state.ClientState)
	require.Equal(t, "n-0S6_WzA2Mj", state.Nonce)
	require.Equal(t, testRedirectURI, state.RedirectURI)
}

func TestAuthorize_PassthroughParams(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	query := authorizeQuery()
	query.Set("prompt", "none")

	rec := f.get(t, server.RouteAuthorize+"?"+query.Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "none", location.Query().Get("prompt"))
}

func TestAuthorize_Rejections(t *testing.T) {
	setServerEnv(t)

	tests := []struct {
		name      string
		env       map[string]string
		mutate    func(url.Values)
		wantError string
	}{
		{
			name:      "missing client_id",
			mutate:    func(q url.Values) { q.Del("client_id") },
			wantError: "invalid_request",
		},
		{
			name:      "disallowed client",
			env:       map[string]string{"SNOWGATE_ALLOWED_CLIENTS": "someone-else"},
			mutate:    func(url.Values) {},
			wantError: "invalid_request",
		},
		{
			name:      "insecure redirect URI",
			mutate:    func(q url.Values) { q.Set("redirect_uri", "http://app.example.com/cb") },
			wantError: "invalid_request",
		},
		{
			name:      "redirect URI outside callback namespace",
			mutate:    func(q url.Values) { q.Set("redirect_uri", testRedirectURI) },
			wantError: "invalid_request",
		},
		{
			name:      "missing openid scope",
			mutate:    func(q url.Values) { q.Set("scope", "profile email") },
			wantError: "invalid_scope",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for name, value := range tc.env {
				t.Setenv(name, value)
			}
			f := newFixture(t)

			query := authorizeQuery()
			tc.mutate(query)

			rec := f.get(t, server.RouteAuthorize+"?"+query.Encode())
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tc.wantError, decodeError(t, rec).Error)
		})
	}
}

func TestAuthorize_FixRedirectURIs(t *testing.T) {
	setServerEnv(t)
	t.Setenv("SNOWGATE_FIX_REDIRECT_URIS", "true")
	f := newFixture(t)

	query := authorizeQuery()
	query.Set("redirect_uri", testRedirectURI)

	rec := f.get(t, server.RouteAuthorize+"?"+query.Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, fixedRedirectURI, location.Query().Get("redirect_uri"))
}

func TestCallback(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	packed, err := f.flows.PackState(authflow.State{
		Scopes:      []string{"openid", "profile"},
		ClientState: "client-opaque-state",
		Nonce:       "n-0S6_WzA2Mj",
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)

	inbound := url.Values{"code": {"upstream-code"}, "state": {packed}}
	rec := f.get(t, callbackPath+"?"+inbound.Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "https", location.Scheme)
	require.Equal(t, "app.example.com", location.Host)
	require.Equal(t, "/cb", location.Path)

	outbound := location.Query()
	require.Equal(t, "client-opaque-state", outbound.Get("state"))

	// The relying party receives a wrapped code, never Discord's own.
	require.NotEqual(t, "upstream-code", outbound.Get("code"))
	wrapped, err := f.flows.UnwrapCode(outbound.Get("code"))
	require.NoError(t, err)
	require.Equal(t, "upstream-code", wrapped.Code)
	require.Equal(t, []string{"openid", "profile"}, wrapped.Scopes)
	require.Equal(t, "n-0S6_WzA2Mj", wrapped.Nonce)
}

func TestCallback_UpstreamError(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	packed, err := f.flows.PackState(authflow.State{
		Scopes:      []string{"openid"},
		ClientState: "client-opaque-state",
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)

	inbound := url.Values{
		"error":             {"access_denied"},
		"error_description": {"The user denied the request"},
		"code":              {"upstream-code"},
		"state":             {packed},
	}
	rec := f.get(t, callbackPath+"?"+inbound.Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	outbound := location.Query()
	require.Equal(t, "access_denied", outbound.Get("error"))
	require.Equal(t, "client-opaque-state", outbound.Get("state"))
	require.Empty(t, outbound.Get("code"))
}

func TestCallback_BadState(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	tests := []struct {
		name  string
		state string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.get(t, callbackPath+"?code=upstream-code&state="+url.QueryEscape(tc.state))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "mismatching state", decodeError(t, rec).ErrorDescription)
		})
	}
}

func TestCallback_RedirectTargetMismatch(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	packed, err := f.flows.PackState(authflow.State{
		Scopes:      []string{"openid"},
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)

	// State was created for app.example.com; the callback path says otherwise.
	rec := f.get(t, "/r/https:/evil.example.com/cb?code=upstream-code&state="+url.QueryEscape(packed))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "mismatching state", decodeError(t, rec).ErrorDescription)
}

func tokenForm(code string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {testClientID},
		"client_secret": {"shh"},
		"redirect_uri":  {fixedRedirectURI},
	}
}

func (f *fixture) wrapCode(t *testing.T, scopes []string, nonce string) string {
	t.Helper()
	wrapped, err := f.flows.WrapCode(authflow.WrappedCode{
		Code:   "upstream-code",
		Scopes: scopes,
		Nonce:  nonce,
	})
	require.NoError(t, err)
	return wrapped
}

func TestToken(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	code := f.wrapCode(t, []string{"openid", "profile", "email"}, "n-0S6_WzA2Mj")
	rec := f.postForm(t, server.RouteToken, tokenForm(code))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Bearer", body.TokenType)
	require.Equal(t, "discord-rt", body.RefreshToken)

	// Discord saw the real code, not the wrapped one.
	require.Equal(t, "upstream-code", f.stub.lastExchange.Get("code"))
	require.Equal(t, fixedRedirectURI, f.stub.lastExchange.Get("redirect_uri"))

	accessClaims, err := f.codec.Decode(body.AccessToken, token.WithIssuer(testBaseURL))
	require.NoError(t, err)
	require.Equal(t, "80351110224678912", accessClaims["sub"])
	require.Equal(t, testBaseURL+server.RouteUserInfo, accessClaims["aud"])
	require.Equal(t, "nelly@discord.com", accessClaims["email"])
	require.NotContains(t, accessClaims, "nonce")

	identityClaims, err := f.codec.Decode(body.IdToken, token.WithIssuer(testBaseURL))
	require.NoError(t, err)
	require.Equal(t, "80351110224678912", identityClaims["sub"])
	require.Equal(t, testClientID, identityClaims["aud"])
	require.Equal(t, "n-0S6_WzA2Mj", identityClaims["nonce"])
}

func TestToken_BasicAuth(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	form := tokenForm(f.wrapCode(t, []string{"openid"}, ""))
	form.Del("client_id")
	form.Del("client_secret")

	req := httptest.NewRequest(http.MethodPost, testBaseURL+server.RouteToken, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, "shh")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, testClientID, f.stub.lastExchange.Get("client_id"))
}

func TestToken_ConflictingCredentials(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	form := tokenForm(f.wrapCode(t, []string{"openid"}, ""))
	req := httptest.NewRequest(http.MethodPost, testBaseURL+server.RouteToken, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, "shh")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestToken_InvalidCode(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	rec := f.postForm(t, server.RouteToken, tokenForm("not-a-wrapped-code"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_grant", decodeError(t, rec).Error)
}

func TestToken_MissingClientID(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)

	form := tokenForm(f.wrapCode(t, []string{"openid"}, ""))
	form.Del("client_id")
	form.Del("client_secret")

	rec := f.postForm(t, server.RouteToken, form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestToken_UpstreamRejectsCode(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)
	f.stub.tokenStatus = http.StatusBadRequest

	rec := f.postForm(t, server.RouteToken, tokenForm(f.wrapCode(t, []string{"openid"}, "")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_grant", decodeError(t, rec).Error)
}

func TestToken_UpstreamDown(t *testing.T) {
	setServerEnv(t)
	f := newFixture(t)
	f.stub.tokenStatus = http.StatusInternalServerError

	rec := f.postForm(t, server.RouteToken, tokenForm(f.wrapCode(t, []string{"openid"}, "")))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream_error", decodeError(t, rec).Error)
}
