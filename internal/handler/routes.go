package handler

import (
	"net/http"

	"go-cms-app/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Middleware bundles the request middleware the router wires in.
type Middleware struct {
	Session   func(http.Handler) http.Handler
	Authn     func(http.Handler) http.Handler
	Authz     func(http.Handler) http.Handler
	AuthLimit func(http.Handler) http.Handler
	Errors    func(middleware.AppHandler) http.Handler
}

// NewRouter creates and configures a new chi router.
func NewRouter(pageHandler *PageHandler, authHandler *AuthHandler, assetHandler *AssetHandler, mw Middleware) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if mw.Session != nil {
		r.Use(mw.Session)
	}
	r.Use(mw.Authn)
	r.Use(mw.Authz)

	e := mw.Errors

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if mw.AuthLimit != nil {
				r.Use(mw.AuthLimit)
			}
			r.Method(http.MethodPost, "/register", e(authHandler.register))
			r.Method(http.MethodPost, "/login", e(authHandler.login))
		})
		r.Method(http.MethodPost, "/logout", e(authHandler.logout))
		r.Method(http.MethodGet, "/me", e(authHandler.me))
		r.Method(http.MethodGet, "/oidc/login", e(authHandler.oidcLogin))
		r.Method(http.MethodGet, "/oidc/callback", e(authHandler.oidcCallback))
	})

	r.Route("/api/pages", func(r chi.Router) {
		r.Method(http.MethodGet, "/", e(pageHandler.listPages))
		r.Method(http.MethodPost, "/", e(pageHandler.createPage))
		r.Method(http.MethodGet, "/tree", e(pageHandler.getTree))
		r.Method(http.MethodPut, "/move/{id:[0-9]+}", e(pageHandler.movePage))
		r.Method(http.MethodGet, "/by-path/*", e(pageHandler.getPageByPath))
		r.Method(http.MethodGet, "/{id:[0-9]+}", e(pageHandler.getPage))
		r.Method(http.MethodPut, "/{id:[0-9]+}", e(pageHandler.updatePage))
		r.Method(http.MethodDelete, "/{id:[0-9]+}", e(pageHandler.deletePage))
		r.Method(http.MethodGet, "/{id:[0-9]+}/versions", e(pageHandler.listVersions))
		r.Method(http.MethodDelete, "/{id:[0-9]+}/versions/drop", e(pageHandler.pruneVersions))
		r.Method(http.MethodGet, "/{id:[0-9]+}/path", e(pageHandler.getPagePath))
	})

	r.Route("/api/assets", func(r chi.Router) {
		r.Method(http.MethodPost, "/upload", e(assetHandler.upload))
		r.Method(http.MethodGet, "/view/{id:[0-9]+}", e(assetHandler.view))
		r.Method(http.MethodGet, "/by-path/*", e(assetHandler.viewByPath))
		r.Method(http.MethodDelete, "/{id:[0-9]+}", e(assetHandler.delete))
	})

	return r
}
