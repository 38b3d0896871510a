package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	appconfig "github.com/wolfman30/rideclick/internal/config"
	"github.com/wolfman30/rideclick/internal/uber"
	"github.com/wolfman30/rideclick/pkg/logging"
)

// BuildRedisClient returns the client backing the domain registry and the
// nonce store, or nil when no address is configured. With verify set the
// client is pinged and closed again on failure.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildOAuth2Config returns the ride API application config. RedirectURL is
// left blank when no public base URL is configured so handlers derive it
// from each request.
func BuildOAuth2Config(cfg *appconfig.Config) *oauth2.Config {
	redirect := ""
	if cfg.PublicBaseURL != "" {
		redirect = cfg.PublicBaseURL + "/receive-oauth2"
	}
	return uber.OAuth2Config(cfg.UberClientID, cfg.UberClientSecret, cfg.UberAuthURL, cfg.UberTokenURL, redirect)
}
