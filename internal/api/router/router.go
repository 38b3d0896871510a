package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/rideclick/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rideclick/internal/http/middleware"
	"github.com/wolfman30/rideclick/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Widget             *handlers.WidgetHandler
	Assets             *handlers.AssetsHandler
	Health             http.HandlerFunc
	MetricsHandler     http.Handler
	RequestObserver    httpmiddleware.RequestObserver
	CORSAllowedOrigins []string
	// RateLimiter throttles the widget API per client IP when set.
	RateLimiter *httpmiddleware.RateLimiter
	// AdminAuthSecret guards /register and /usage. They are open when blank.
	AdminAuthSecret string
	StaticDir       string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger, cfg.RequestObserver))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Assets != nil {
			public.Get("/oneclick.js", cfg.Assets.WidgetJS)
			public.Get("/map.html", cfg.Assets.MapPage)
		}
		if cfg.StaticDir != "" {
			public.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		}
	})

	if cfg.Widget == nil {
		return r
	}

	r.Group(func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Post("/init", cfg.Widget.Init)
		api.Post("/profile", cfg.Widget.Profile)
		api.Get("/grant", cfg.Widget.Grant)
		api.Post("/grant", cfg.Widget.Grant)
		api.Get("/receive-oauth2", cfg.Widget.ReceiveOAuth2)
		api.Post("/deauth", cfg.Widget.Deauth)
		api.Post("/estimate-price", cfg.Widget.EstimatePrice)
		api.Post("/order", cfg.Widget.Order)
	})

	r.Group(func(admin chi.Router) {
		if cfg.AdminAuthSecret != "" {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		} else {
			logger.Warn("ADMIN_JWT_SECRET not set; admin routes are open")
		}
		admin.Post("/register", cfg.Widget.Register)
		admin.Get("/usage", cfg.Widget.Usage)
	})

	return r
}
