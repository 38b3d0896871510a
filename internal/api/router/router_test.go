package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/rideclick/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rideclick/internal/http/middleware"
	"github.com/wolfman30/rideclick/internal/nonce"
	"github.com/wolfman30/rideclick/internal/registry"
	"github.com/wolfman30/rideclick/internal/uber"
	"github.com/wolfman30/rideclick/pkg/logging"
)

type testEnv struct {
	router http.Handler
	apiKey string
}

func newTestRouter(t *testing.T, mutate func(*Config)) testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	logger := logging.Default()
	reg := registry.New(client, logger)
	apiKey, err := reg.NewAPIKey(context.Background(), "shop.example.com")
	require.NoError(t, err)

	widget := handlers.NewWidgetHandler(handlers.WidgetConfig{
		Registry: reg,
		Nonces:   nonce.NewStore(client, logger),
		OAuth2:   uber.OAuth2Config("id", "secret", "https://login.example.com/authorize", "https://login.example.com/token", ""),
		Logger:   logger,
	})

	cfg := &Config{
		Logger: logger,
		Widget: widget,
		Assets: handlers.NewAssetsHandler("maps-key", "", logger),
		Health: handlers.Health(map[string]handlers.Pinger{
			"redis": handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
		}),
		CORSAllowedOrigins: []string{"https://shop.example.com"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return testEnv{router: New(cfg), apiKey: apiKey}
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestRouterInitFlow(t *testing.T) {
	env := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{"api_key":"`+env.apiKey+`","origin":"https://shop.example.com"}`))
	req.Header.Set("Origin", "https://shop.example.com")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"nonce"`)
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterPreflight(t *testing.T) {
	env := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/profile", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouterMethodsAndAssets(t *testing.T) {
	env := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/init", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/oneclick.js", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/map.html", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "maps-key")

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/grant", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestRouterRegisterRequiresAdminToken(t *testing.T) {
	env := newTestRouter(t, func(cfg *Config) { cfg.AdminAuthSecret = "admin-secret" })

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`["a.example.com"]`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("admin-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`["a.example.com"]`))
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"api_key"`)
}

func TestRouterRateLimitsWidgetAPI(t *testing.T) {
	env := newTestRouter(t, func(cfg *Config) { cfg.RateLimiter = httpmiddleware.NewRateLimiter(0.001, 1) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
