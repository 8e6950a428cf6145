package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteRoot, ChainMiddleware(s.RootHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// OAuth2 / OIDC flow
	s.RegisterRouteHandler("GET "+RouteAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRedirect, ChainMiddleware(s.RedirectRoot(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.Callback(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware()...))

	// Discovery
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))

	if s.config.GetWebFingerEnabled() {
		s.RegisterRouteHandler("GET "+RouteWellKnownWebFinger, ChainMiddleware(s.WebFinger(), s.APIMiddleware()...))
	}
}
