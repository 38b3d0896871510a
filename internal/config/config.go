package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	StaticDir     string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	RedisDB       int

	// Ride API OAuth2 application
	UberClientID     string
	UberClientSecret string
	UberAPIBaseURL   string
	UberAuthURL      string
	UberTokenURL     string

	GoogleMapsAPIKey string

	// HMAC secret for admin tokens on key registration endpoints.
	AdminJWTSecret string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// TLS via ACME when domains are set; HTTP1 forces a plain listener.
	TLSDomains    []string
	TLSCacheDir   string
	HTTP1         bool
	NonceCookie   string
	EstimateLimit int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "9899"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StaticDir:     getEnv("STATIC_DIR", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		UberClientID:     getEnv("UBER_CLIENT_ID", ""),
		UberClientSecret: getEnv("UBER_CLIENT_SECRET", ""),
		UberAPIBaseURL:   getEnv("UBER_API_BASE_URL", "https://api.uber.com"),
		UberAuthURL:      getEnv("UBER_AUTH_URL", "https://login.uber.com/oauth/v2/authorize"),
		UberTokenURL:     getEnv("UBER_TOKEN_URL", "https://login.uber.com/oauth/v2/token"),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		TLSDomains:    getEnvAsList("TLS_DOMAINS", nil),
		TLSCacheDir:   getEnv("TLS_CACHE_DIR", "certs"),
		HTTP1:         getEnvAsBool("HTTP1", true),
		NonceCookie:   getEnv("NONCE_COOKIE", "uberclick-nonce"),
		EstimateLimit: getEnvAsInt("ESTIMATE_CONCURRENCY", 5),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
