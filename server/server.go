package server

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/snowgate-dev/snowgate/authflow"
	"github.com/snowgate-dev/snowgate/claims"
	"github.com/snowgate-dev/snowgate/discord"
	"github.com/snowgate-dev/snowgate/internal/config"
	"github.com/snowgate-dev/snowgate/token"
	"github.com/snowgate-dev/snowgate/token/keystore"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	issuerURL string

	keyStore *keystore.Store
	codec    *token.Codec
	flows    *authflow.Manager
	discord  *discord.Factory
	issuer   *claims.Issuer
}

type Option func(*Server)

// WithDiscordFactory replaces the Discord client factory. Used in tests to
// point the server at a stub upstream.
func WithDiscordFactory(factory *discord.Factory) Option {
	return func(s *Server) {
		s.discord = factory
	}
}

// WithKeyStore replaces the signing key store.
func WithKeyStore(store *keystore.Store) Option {
	return func(s *Server) {
		s.keyStore = store
	}
}

func New(cfg config.Config, options ...Option) (*Server, error) {
	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid base URL %q: %w", cfg.GetBaseURL(), err)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		env:       cfg.GetEnv(),
		issuerURL: strings.TrimSuffix(base.String(), "/"),
	}

	for _, opt := range options {
		opt(s)
	}

	if s.keyStore == nil {
		s.keyStore = keystore.New(cfg.GetKeyFile())
	}
	if s.discord == nil {
		s.discord = discord.NewFactory(cfg.GetUpstreamTimeout())
	}

	s.codec = token.NewCodec(s.keyStore)
	s.flows = authflow.NewManager(s.codec, cfg.GetStateLifetime(), cfg.GetCodeLifetime())
	s.issuer = claims.NewIssuer(
		s.codec,
		s.issuerURL,
		s.issuerURL+RouteUserInfo,
		cfg.GetTokenLifetime(),
		cfg.GetGuildsScopeEnabled(),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
