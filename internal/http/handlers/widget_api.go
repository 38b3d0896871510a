package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	httpmiddleware "github.com/wolfman30/rideclick/internal/http/middleware"
	"github.com/wolfman30/rideclick/internal/nonce"
	"github.com/wolfman30/rideclick/internal/observability/metrics"
	"github.com/wolfman30/rideclick/internal/registry"
	"github.com/wolfman30/rideclick/internal/uber"
	"github.com/wolfman30/rideclick/pkg/logging"
)

const (
	// DefaultNonceCookie carries the token-bound nonce on the backend's domain.
	DefaultNonceCookie = "uberclick-nonce"

	defaultEstimateLimit = 5
	defaultMaxEstimates  = 4

	defaultUsageEntries = 50
	maxUsageEntries     = 1000
)

// DomainRegistry authorizes API keys per site domain.
type DomainRegistry interface {
	AllowedDomain(ctx context.Context, apiKey, domain string) (bool, error)
	RecordUsage(ctx context.Context, originURL string) error
	NewAPIKey(ctx context.Context, domains ...string) (string, error)
	RecentUsage(ctx context.Context, n int64) ([]registry.Usage, error)
}

// NonceStore keeps nonces and the OAuth2 state and tokens bound to them.
type NonceStore interface {
	nonce.Lookup
	Issue(ctx context.Context, apiKey string) (string, error)
	IssuedFor(ctx context.Context, n string) (string, error)
	SetState(ctx context.Context, state, n string) error
	PopState(ctx context.Context, state string) (string, error)
	SaveToken(ctx context.Context, n string, tok *oauth2.Token) error
	Token(ctx context.Context, n string) (*oauth2.Token, error)
	PopToken(ctx context.Context, n string) (*oauth2.Token, error)
}

// RideClient is the subset of the ride API used on a rider's behalf.
type RideClient interface {
	Profile(ctx context.Context) (*uber.Profile, error)
	PriceEstimates(ctx context.Context, req *uber.EstimateRequest) ([]*uber.PriceEstimate, error)
	UpfrontFare(ctx context.Context, req *uber.EstimateRequest) (*uber.UpfrontFare, error)
}

// RideClientFactory builds a RideClient for one rider token.
type RideClientFactory func(ctx context.Context, tok *oauth2.Token) RideClient

// WidgetConfig wires a WidgetHandler.
type WidgetConfig struct {
	Registry DomainRegistry
	Nonces   NonceStore
	// OAuth2 is copied per request; RedirectURL is derived when blank.
	OAuth2        *oauth2.Config
	UberBaseURL   string
	PublicBaseURL string
	CookieName    string
	EstimateLimit int
	MaxEstimates  int
	NewRideClient RideClientFactory
	Metrics       *metrics.WidgetMetrics
	Logger        *logging.Logger
}

// WidgetHandler serves the backend the one-click widget talks to.
type WidgetHandler struct {
	cfg    WidgetConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewWidgetHandler(cfg WidgetConfig) *WidgetHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultNonceCookie
	}
	if cfg.EstimateLimit <= 0 {
		cfg.EstimateLimit = defaultEstimateLimit
	}
	if cfg.MaxEstimates <= 0 {
		cfg.MaxEstimates = defaultMaxEstimates
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	h := &WidgetHandler{cfg: cfg, logger: cfg.Logger.Component("widget_api"), now: time.Now}
	if h.cfg.NewRideClient == nil {
		h.cfg.NewRideClient = h.defaultRideClient
	}
	return h
}

func (h *WidgetHandler) defaultRideClient(ctx context.Context, tok *oauth2.Token) RideClient {
	return uber.NewClient(ctx, h.cfg.OAuth2, tok, h.cfg.UberBaseURL)
}

type initRequest struct {
	APIKey string `json:"api_key" validate:"required"`
	Origin string `json:"origin" validate:"required,url"`
}

type profileRequest struct {
	APIKey string `json:"api_key"`
	Nonce  string `json:"nonce"`
	Origin string `json:"origin" validate:"required,url"`
}

type authInfo struct {
	URL string `json:"url"`
}

// Init issues a nonce to a page whose origin is registered for the key.
// POST /init
func (h *WidgetHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.authorizeDomain(w, r, req.APIKey, req.Origin) {
		return
	}

	n, err := h.cfg.Nonces.Issue(r.Context(), req.APIKey)
	if err != nil {
		h.logger.Error("failed to issue nonce", "error", err)
		jsonError(w, "failed to issue nonce", http.StatusInternalServerError)
		return
	}
	h.cfg.Metrics.ObserveNonceIssued()
	writeJSON(w, http.StatusOK, map[string]string{"nonce": n})
}

// Profile returns the rider profile for a token-bound nonce, or the URL that
// starts authorization when there is none.
// POST /profile[?key=]
func (h *WidgetHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.APIKey == "" {
		req.APIKey = r.URL.Query().Get("key")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		jsonError(w, nonce.ErrBlankAPIKey.Error(), http.StatusBadRequest)
		return
	}
	if !h.authorizeDomain(w, r, req.APIKey, req.Origin) {
		return
	}

	tok, n, err := h.tokenFor(r, req.Nonce)
	if errors.Is(err, nonce.ErrCacheMiss) {
		if n == "" {
			n = req.Nonce
		}
		writeJSON(w, http.StatusOK, authInfo{URL: h.grantURL(r, n, req.APIKey)})
		return
	}
	if err != nil {
		h.logger.Error("token lookup failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.cfg.NewRideClient(r.Context(), tok).Profile(r.Context())
	if err != nil {
		h.logger.Warn("profile lookup failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Grant binds a fresh OAuth2 state to the caller's nonce and hands out the
// authorization URL. An unknown or absent nonce is replaced by a new one.
// GET|POST /grant?nonce=&key=
func (h *WidgetHandler) Grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	apiKey := q.Get("key")
	n := q.Get("nonce")

	if n != "" {
		issuedFor, err := h.cfg.Nonces.IssuedFor(ctx, n)
		if err != nil || (apiKey != "" && issuedFor != apiKey) {
			n = ""
		}
	}
	if n == "" {
		var err error
		if n, err = h.cfg.Nonces.Issue(ctx, apiKey); err != nil {
			h.logger.Error("failed to issue nonce", "error", err)
			jsonError(w, "failed to issue nonce", http.StatusInternalServerError)
			return
		}
	}

	state := uuid.NewString()
	if err := h.cfg.Nonces.SetState(ctx, state, n); err != nil {
		h.logger.Error("failed to save oauth2 state", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	authURL := h.oauth2Config(r).AuthCodeURL(state, oauth2.AccessTypeOffline)
	if r.Method == http.MethodGet {
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, authInfo{URL: authURL})
}

// ReceiveOAuth2 completes authorization: the code is exchanged and the token
// saved under the nonce the state was bound to.
// GET /receive-oauth2
func (h *WidgetHandler) ReceiveOAuth2(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		jsonError(w, "authorization denied: "+reason, http.StatusBadRequest)
		return
	}

	n, err := h.cfg.Nonces.PopState(ctx, q.Get("state"))
	if err != nil {
		h.logger.Warn("unknown oauth2 state", "error", err)
		jsonError(w, "failed to correlate the found state. Please try again", http.StatusBadRequest)
		return
	}

	tok, err := h.oauth2Config(r).Exchange(ctx, q.Get("code"))
	h.cfg.Metrics.ObserveOAuthExchange(err)
	if err != nil {
		h.logger.Warn("code exchange failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.cfg.Nonces.SaveToken(ctx, n, tok); err != nil {
		h.logger.Error("failed to save token", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	http.SetCookie(w, h.nonceCookie(r, n, tok.Expiry))
	h.logger.Info("rider authorized")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type registerResponse struct {
	APIKey  string   `json:"api_key"`
	Domains []string `json:"domains"`
}

// Register mints an API key for a JSON list of domains.
// POST /register
func (h *WidgetHandler) Register(w http.ResponseWriter, r *http.Request) {
	var domains []string
	if err := decodeJSON(r, &domains); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Var(domains, "required,min=1,dive,required"); err != nil {
		jsonError(w, "expecting a non-empty list of domains", http.StatusBadRequest)
		return
	}

	apiKey, err := h.cfg.Registry.NewAPIKey(r.Context(), domains...)
	if err != nil {
		h.logger.Error("failed to register domains", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sub, ok := httpmiddleware.AdminSubject(r.Context()); ok {
		h.logger.Info("api key registered", "admin", sub, "domains", len(domains))
	}
	writeJSON(w, http.StatusOK, registerResponse{APIKey: apiKey, Domains: domains})
}

// Usage lists the newest origins seen by the domain check.
// GET /usage[?n=]
func (h *WidgetHandler) Usage(w http.ResponseWriter, r *http.Request) {
	n := int64(defaultUsageEntries)
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 || v > maxUsageEntries {
			jsonError(w, "n must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		n = v
	}
	usage, err := h.cfg.Registry.RecentUsage(r.Context(), n)
	if err != nil {
		h.logger.Error("failed to read usage", "error", err)
		jsonError(w, "failed to read usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// Deauth consumes a submission's nonce and forgets its token.
// POST /deauth
func (h *WidgetHandler) Deauth(w http.ResponseWriter, r *http.Request) {
	subm, err := nonce.ParseSubmission(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if we := subm.Validate(r.Context(), h.cfg.Nonces); we != nil {
		writeJSON(w, http.StatusBadRequest, we)
		return
	}

	if _, err := h.cfg.Nonces.PopToken(r.Context(), subm.Nonce); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, nonce.ErrCacheMiss) {
			status = http.StatusNotFound
		}
		jsonError(w, err.Error(), status)
		return
	}
	http.SetCookie(w, h.nonceCookie(r, "", time.Unix(0, 0)))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// EstimatePrice pairs the first price estimates with their upfront fares.
// Fares are looked up concurrently, bounded by EstimateLimit.
// POST /estimate-price[?nonce=]
func (h *WidgetHandler) EstimatePrice(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.requireToken(w, r)
	if !ok {
		return
	}
	var req uber.EstimateRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	client := h.cfg.NewRideClient(ctx, tok)
	estimates, err := client.PriceEstimates(ctx, &req)
	if err != nil {
		h.logger.Warn("price estimates failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if len(estimates) > h.cfg.MaxEstimates {
		estimates = estimates[:h.cfg.MaxEstimates]
	}

	quotes := make([]uber.FareQuote, len(estimates))
	var g errgroup.Group
	g.SetLimit(h.cfg.EstimateLimit)
	for i, est := range estimates {
		i := i
		quotes[i].Estimate = est
		fareReq := req
		fareReq.ProductID = est.ProductID
		g.Go(func() error {
			fare, err := client.UpfrontFare(ctx, &fareReq)
			h.cfg.Metrics.ObserveFareLookup(err)
			if err != nil {
				// The estimate is still returned, just without a fare.
				h.logger.Warn("upfront fare failed", "product_id", fareReq.ProductID, "error", err)
				return nil
			}
			quotes[i].UpfrontFare = fare
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, quotes)
}

// Order accepts a validated ride request.
// POST /order[?nonce=]
func (h *WidgetHandler) Order(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireToken(w, r); !ok {
		return
	}
	var req uber.RideRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Info("ride order accepted", "product_id", req.ProductID, "seat_count", req.SeatCount)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "product_id": req.ProductID})
}

// authorizeDomain records the key's use and answers 401 unless origin's host
// is registered for apiKey.
func (h *WidgetHandler) authorizeDomain(w http.ResponseWriter, r *http.Request, apiKey, origin string) bool {
	ctx := r.Context()
	if err := h.cfg.Registry.RecordUsage(ctx, origin); err != nil {
		h.logger.Warn("failed to record api key usage", "error", err)
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		jsonError(w, "invalid origin", http.StatusBadRequest)
		return false
	}
	// Registered domains carry a port when the origin does.
	allowed, err := h.cfg.Registry.AllowedDomain(ctx, apiKey, originURL.Host)
	h.cfg.Metrics.ObserveDomainCheck(allowed, err)
	if err != nil {
		h.logger.Error("domain check failed", "error", err)
		jsonError(w, err.Error(), http.StatusUnauthorized)
		return false
	}
	if !allowed {
		jsonError(w, "unauthorized domain", http.StatusUnauthorized)
		return false
	}
	return true
}

// tokenFor finds a saved token for the first candidate nonce that has one:
// the given nonce, the ?nonce= query, then the nonce cookie. On a miss it
// returns the first candidate seen.
func (h *WidgetHandler) tokenFor(r *http.Request, given string) (*oauth2.Token, string, error) {
	candidates := []string{given, r.URL.Query().Get("nonce")}
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		candidates = append(candidates, c.Value)
	}

	first := ""
	seen := map[string]bool{}
	for _, n := range candidates {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if first == "" {
			first = n
		}
		tok, err := h.cfg.Nonces.Token(r.Context(), n)
		if errors.Is(err, nonce.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, n, err
		}
		return tok, n, nil
	}
	return nil, first, nonce.ErrCacheMiss
}

// requireToken answers 401 with a grant URL when the caller has no token.
func (h *WidgetHandler) requireToken(w http.ResponseWriter, r *http.Request) (*oauth2.Token, bool) {
	tok, n, err := h.tokenFor(r, "")
	if errors.Is(err, nonce.ErrCacheMiss) {
		writeJSON(w, http.StatusUnauthorized, authInfo{URL: h.grantURL(r, n, "")})
		return nil, false
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return tok, true
}

func (h *WidgetHandler) grantURL(r *http.Request, n, apiKey string) string {
	q := url.Values{}
	if n != "" {
		q.Set("nonce", n)
	}
	if apiKey != "" {
		q.Set("key", apiKey)
	}
	u := h.baseURL(r) + "/grant"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (h *WidgetHandler) oauth2Config(r *http.Request) *oauth2.Config {
	cfg := *h.cfg.OAuth2
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = h.baseURL(r) + "/receive-oauth2"
	}
	return &cfg
}

func (h *WidgetHandler) baseURL(r *http.Request) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL
	}
	return scheme(r) + "://" + r.Host
}

func (h *WidgetHandler) nonceCookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
	}
	if !expires.IsZero() {
		c.Expires = expires
		if maxAge := int(expires.Sub(h.now()).Seconds()); maxAge > 0 {
			c.MaxAge = maxAge
		} else {
			c.MaxAge = -1
		}
	}
	if strings.HasPrefix(h.baseURL(r), "https://") {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
