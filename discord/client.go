// Package discord is the seam to Discord's OAuth2 API: it builds per-request
// OAuth2 clients, exchanges authorization codes, and fetches the user
// attributes claims are mapped from.
package discord

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Discord API locations.
const (
	AuthorizeURL = "https://discord.com/oauth2/authorize"
	TokenURL     = "https://discord.com/api/oauth2/token"
	APIBaseURL   = "https://discord.com/api"
	CDNBaseURL   = "https://cdn.discordapp.com"
)

// oidcScopeOrder fixes the translation order so the scope string sent to
// Discord is deterministic.
var oidcScopeOrder = []string{"profile", "email", "groups"}

// scopeMap translates granted OIDC scopes to the Discord scopes that back
// them.
var scopeMap = map[string]string{
	"profile": "identify",
	"email":   "email",
	"groups":  "guilds",
}

// TranslateScopes maps OIDC scopes to Discord scopes. Unknown scopes
// (including openid itself) have no Discord counterpart and are dropped.
func TranslateScopes(oidcScopes []string) []string {
	granted := make(map[string]bool, len(oidcScopes))
	for _, s := range oidcScopes {
		granted[s] = true
	}

	translated := make([]string, 0, len(oidcScopeOrder))
	for _, s := range oidcScopeOrder {
		if granted[s] {
			translated = append(translated, scopeMap[s])
		}
	}
	return translated
}

// Factory constructs OAuth2 clients bound to Discord's endpoints. One client
// is built per request; the factory only carries the shared HTTP client.
type Factory struct {
	httpClient   *http.Client
	authorizeURL string
	tokenURL     string
	apiBaseURL   string
}

type FactoryOption func(*Factory)

// WithHTTPClient overrides the HTTP client used for all upstream calls.
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *Factory) {
		f.httpClient = client
	}
}

// WithBaseURLs points the factory at alternative endpoints. Used in tests.
func WithBaseURLs(authorizeURL, tokenURL, apiBaseURL string) FactoryOption {
	return func(f *Factory) {
		f.authorizeURL = authorizeURL
		f.tokenURL = tokenURL
		f.apiBaseURL = apiBaseURL
	}
}

func NewFactory(timeout time.Duration, options ...FactoryOption) *Factory {
	f := &Factory{
		httpClient:   &http.Client{Timeout: timeout},
		authorizeURL: AuthorizeURL,
		tokenURL:     TokenURL,
		apiBaseURL:   APIBaseURL,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// NewClient builds a client for one request, bound to the given relying
// party credentials and Discord scopes.
func (f *Factory) NewClient(clientID, clientSecret string, scopes []string) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   f.authorizeURL,
				TokenURL:  f.tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: f.httpClient,
		apiBaseURL: f.apiBaseURL,
	}
}

// Client is a single-request OAuth2 client for Discord.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
	apiBaseURL string
}

// ClientID returns the relying party client ID the client was built for. It
// becomes the ID token audience.
func (c *Client) ClientID() string {
	return c.config.ClientID
}

// AuthCodeURL builds the URL the end user is redirected to at Discord.
func (c *Client) AuthCodeURL(redirectURI, state string, extraParams map[string]string) string {
	cfg := *c.config
	cfg.RedirectURL = redirectURI

	opts := make([]oauth2.AuthCodeOption, 0, len(extraParams))
	for k, v := range extraParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// Exchange swaps an authorization code for a Discord token. The redirect URI
// must match the one Discord saw during authorization.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	cfg := *c.config
	cfg.RedirectURL = redirectURI
	return cfg.Exchange(c.withHTTPClient(ctx), code)
}

// withHTTPClient makes oauth2 use the factory's timeout-bounded client for
// the exchange and all token-authenticated calls.
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
