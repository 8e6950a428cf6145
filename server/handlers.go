package server

import "net/http"

// RootHandler redirects visitors to the configured landing URL, or 404s.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if target := s.config.GetRootRedirectURL(); target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		writeError(w, http.StatusNotFound, "not_found", "")
	}
}

// HealthHandler returns 200 with an empty body and does nothing else.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// RedirectRoot anchors the /r callback namespace. It only exists so redirect
// URIs can be validated as subpaths of it; hitting it directly is forbidden.
func (s *Server) RedirectRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusForbidden, "forbidden", "")
	}
}
