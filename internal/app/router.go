package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tiendita-shop/tiendita/internal/auth"
	"github.com/tiendita-shop/tiendita/internal/catalog"
	"github.com/tiendita-shop/tiendita/internal/observability"
	"github.com/tiendita-shop/tiendita/internal/onboarding"
	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/storefront"
	"github.com/tiendita-shop/tiendita/internal/tenant"
	"github.com/tiendita-shop/tiendita/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	OnboardingHandler  *onboarding.Handler
	StorefrontHandler  *storefront.Handler
	CatalogHandler     *catalog.Handler
	SettingsHandler    *tenant.SettingsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page doubles as the signup form; the onboarding handler also
	// owns the post-confirmation dispatcher.
	params.OnboardingHandler.MountRoutes(r)

	r.Route("/auth", func(r chi.Router) {
		r.Use(AuthRateLimiter())
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/t/{tenantSlug}", func(r chi.Router) {
		params.StorefrontHandler.MountRoutes(r)
		r.Route("/admin", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
			params.SettingsHandler.MountRoutes(r)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
