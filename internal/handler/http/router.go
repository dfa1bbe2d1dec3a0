package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const catalogMaxAge = 60

// Services groups the application services the router exposes.
type Services struct {
	Users    *service.UserService
	Products *service.ProductService
	Carts    *service.CartService
	Orders   *service.OrderService
	Tokens   *auth.TokenService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	Registry       *prometheus.Registry
	Health         *health.Handler
	RateLimiter    *middleware.RateLimiter
	CORS           middleware.CORSConfig
	Cookie         CookieConfig
	RequestTimeout time.Duration
	TrustProxy     bool
	PprofCIDRs     []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry, "storefront").Middleware)
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(securityHeaders)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authn := middleware.Auth(svc.Tokens.Verifier(auth.KindAccess))
	refreshAuthn := middleware.Authenticate(middleware.CookieToken(RefreshCookieName), svc.Tokens.Verifier(auth.KindRefresh))
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	authHandler := NewAuthHandler(svc.Users, cfg.Cookie, logger)
	productHandler := NewProductHandler(svc.Products, logger)
	cartHandler := NewCartHandler(svc.Carts, logger)
	orderHandler := NewOrderHandler(svc.Orders, logger)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Get("/health", health.APIHandler())

		// Account endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Get("/logout", authHandler.Logout)
			r.With(refreshAuthn).Post("/refresh", authHandler.Refresh)
			r.With(authn).Put("/updatePassword", authHandler.UpdatePassword)
			r.With(authn).Get("/profile", authHandler.Profile)
		})

		// Catalog endpoints
		r.Route("/product", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.CacheControl(catalogMaxAge))
				r.Get("/", productHandler.List)
				r.Get("/search", productHandler.Search)
				r.Get("/{id}", productHandler.Get)
			})

			r.Group(func(r chi.Router) {
				r.Use(authn, adminOnly)
				r.Post("/", productHandler.Create)
				r.Put("/{id}", productHandler.Update)
				r.Delete("/{id}", productHandler.Delete)
			})
		})

		// Cart and order endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(authn, middleware.NoStore)

			r.Get("/cart", cartHandler.Get)
			r.Post("/cart/add", cartHandler.Add)
			r.Delete("/cart/remove/{productId}", cartHandler.Remove)

			r.Post("/order/place", orderHandler.Place)
			r.Get("/orders", orderHandler.List)
			r.Get("/order/track/{id}", orderHandler.Track)
			r.Put("/order/cancel/{id}", orderHandler.Cancel)
			r.With(adminOnly).Put("/order/{id}/status", orderHandler.UpdateStatus)
		})
	})

	return r
}

// securityHeaders sets the response headers a JSON API needs to stay out of
// browser content sniffing and framing.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
