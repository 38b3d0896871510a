package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/rideclick/internal/api/router"
	"github.com/wolfman30/rideclick/internal/app/bootstrap"
	appconfig "github.com/wolfman30/rideclick/internal/config"
	"github.com/wolfman30/rideclick/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rideclick/internal/http/middleware"
	"github.com/wolfman30/rideclick/internal/nonce"
	"github.com/wolfman30/rideclick/internal/observability/metrics"
	"github.com/wolfman30/rideclick/internal/registry"
	"github.com/wolfman30/rideclick/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rideclick widget API",
		"env", cfg.Env,
		"port", cfg.Port,
		"tls", bootstrap.UseTLS(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	metricsHandler, widgetMetrics := setupMetrics()
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := buildRouter(cfg, redisClient, widgetMetrics, metricsHandler, limiter, logger)

	if err := serve(ctx, cfg, handler, limiter, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.WidgetMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.NewWidgetMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func buildRouter(cfg *appconfig.Config, redisClient *redis.Client, m *metrics.WidgetMetrics, metricsHandler http.Handler, limiter *httpmiddleware.RateLimiter, logger *logging.Logger) http.Handler {
	widget := handlers.NewWidgetHandler(handlers.WidgetConfig{
		Registry:      registry.New(redisClient, logger),
		Nonces:        nonce.NewStore(redisClient, logger),
		OAuth2:        bootstrap.BuildOAuth2Config(cfg),
		UberBaseURL:   cfg.UberAPIBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
		CookieName:    cfg.NonceCookie,
		EstimateLimit: cfg.EstimateLimit,
		Metrics:       m,
		Logger:        logger,
	})

	return router.New(&router.Config{
		Logger: logger,
		Widget: widget,
		Assets: handlers.NewAssetsHandler(cfg.GoogleMapsAPIKey, cfg.PublicBaseURL, logger),
		Health: handlers.Health(map[string]handlers.Pinger{
			"redis": handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		}),
		MetricsHandler:     metricsHandler,
		RequestObserver:    m,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		StaticDir:          cfg.StaticDir,
	})
}

// serve runs the API until ctx is canceled. With TLS domains configured it
// listens through ACME and redirects port 80 to the first domain.
func serve(ctx context.Context, cfg *appconfig.Config, handler http.Handler, limiter *httpmiddleware.RateLimiter, logger *logging.Logger) error {
	var acme *autocert.Manager
	if bootstrap.UseTLS(cfg) {
		var err error
		if acme, err = bootstrap.BuildACMEManager(cfg); err != nil {
			return err
		}
	}
	lis, err := bootstrap.BuildListener(cfg, acme)
	if err != nil {
		return err
	}

	srv := newServer(lis.Addr().String(), handler)
	servers := []*http.Server{srv}
	g, gctx := errgroup.WithContext(ctx)

	if acme != nil {
		redirect := newServer(":80", bootstrap.RedirectHandler("https://"+cfg.TLSDomains[0], acme))
		servers = append(servers, redirect)
		g.Go(func() error { return ignoreClosed(redirect.ListenAndServe()) })
	}

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		return ignoreClosed(srv.Serve(lis))
	})
	g.Go(func() error {
		limiter.Run(gctx.Done(), time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
