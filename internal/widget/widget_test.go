package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/rideclick/internal/cookies"
	"github.com/wolfman30/rideclick/internal/session"
	"github.com/wolfman30/rideclick/pkg/logging"
)

// fakeBackend records calls and answers from canned functions.
type fakeBackend struct {
	initCalls    atomic.Int32
	profileCalls atomic.Int32

	initFn    func() (string, error)
	profileFn func(creds session.Credentials) (session.ProfileResult, error)

	mu        sync.Mutex
	lastCreds session.Credentials
}

func (f *fakeBackend) Init(_ context.Context, _, _ string) (string, error) {
	f.initCalls.Add(1)
	if f.initFn == nil {
		return "n-1", nil
	}
	return f.initFn()
}

func (f *fakeBackend) RequestProfile(_ context.Context, creds session.Credentials, _ string) (session.ProfileResult, error) {
	f.profileCalls.Add(1)
	f.mu.Lock()
	f.lastCreds = creds
	f.mu.Unlock()
	if f.profileFn == nil {
		return session.ProfileResult{Kind: session.KindProfile, Data: json.RawMessage(`{}`)}, nil
	}
	return f.profileFn(creds)
}

func redirectTo(url string) func(session.Credentials) (session.ProfileResult, error) {
	return func(session.Credentials) (session.ProfileResult, error) {
		return session.ProfileResult{Kind: session.KindRedirect, URL: url}, nil
	}
}

func newPage(t *testing.T, attrs map[string]string) (*HeadlessPage, *HeadlessElement) {
	t.Helper()
	jar, err := cookies.NewJarStore("https://shop.example.com")
	require.NoError(t, err)
	page := NewHeadlessPage("https://shop.example.com", jar, nil)
	el := page.AddElement(DefaultElementID, attrs)
	return page, el
}

func mount(t *testing.T, page Page, variant Variant, backend Backend) *Widget {
	t.Helper()
	w, err := New(context.Background(), page, Config{Variant: variant}, Deps{Backend: backend, Logger: logging.New("error")})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = w.WaitReady(ctx)
	require.NoError(t, err)
	return w
}

func TestNewFailsWithoutElement(t *testing.T) {
	backend := &fakeBackend{}
	page := NewHeadlessPage("https://shop.example.com", nil, nil)

	_, err := New(context.Background(), page, Config{}, Deps{Backend: backend, Logger: logging.New("error")})
	require.ErrorIs(t, err, ErrElementNotFound)
	assert.Zero(t, backend.initCalls.Load())
}

func TestNewFailsWithoutAPIKey(t *testing.T) {
	for name, attrs := range map[string]map[string]string{
		"absent": {"data-callback": "onBooked"},
		"empty":  {"data-apikey": "  "},
	} {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			page, _ := newPage(t, attrs)

			_, err := New(context.Background(), page, Config{}, Deps{Backend: backend, Logger: logging.New("error")})
			require.ErrorIs(t, err, ErrMissingAPIKey)
			assert.Zero(t, backend.initCalls.Load(), "no network call before validation")
		})
	}
}

func TestInitStoresNonceInCookie(t *testing.T) {
	page, el := newPage(t, map[string]string{"data-apikey": "key-1"})
	w := mount(t, page, VariantCookieFrame, &fakeBackend{})

	assert.Equal(t, StateReady, w.State())
	assert.Equal(t, "n-1", page.Cookies().Get("uber-nonce"))
	assert.Equal(t, "n-1", w.Nonce())
	assert.Contains(t, el.Markup(), "Uber one click")
}

func TestInitReplacesPersistedNonce(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	page.Cookies().Set("uber-nonce", "stale")

	backend := &fakeBackend{initFn: func() (string, error) { return "fresh", nil }}
	mount(t, page, VariantCookieFrame, backend)

	assert.Equal(t, int32(1), backend.initCalls.Load())
	assert.Equal(t, "fresh", page.Cookies().Get("uber-nonce"))
}

func TestRedirectClearsCookieAndOpensFrame(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	backend := &fakeBackend{profileFn: redirectTo("https://login.example.com/authorize")}
	w := mount(t, page, VariantCookieFrame, backend)

	action, err := w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionFrame, action.Kind)
	assert.Equal(t, []string{"https://login.example.com/authorize"}, page.Frames())
	assert.Empty(t, page.Navigations())
	assert.Equal(t, "", page.Cookies().Get("uber-nonce"), "nonce is single use")
	assert.Equal(t, "n-1", backend.lastCreds.Nonce)
	assert.Equal(t, "key-1", backend.lastCreds.APIKey)
}

func TestMemoryVariantNavigatesAndKeepsNonce(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	backend := &fakeBackend{profileFn: redirectTo("https://checkout.example.com")}
	w := mount(t, page, VariantMemoryRedirect, backend)

	action, err := w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNavigate, action.Kind)
	assert.Equal(t, []string{"https://checkout.example.com"}, page.Navigations())
	assert.Equal(t, "n-1", w.Nonce())
	assert.Equal(t, "", page.Cookies().Get("uber-nonce"), "memory variant never touches cookies")
}

func TestInitFailureLatchesError(t *testing.T) {
	page, el := newPage(t, map[string]string{"data-apikey": "key-1"})
	backend := &fakeBackend{initFn: func() (string, error) {
		return "", &session.StatusError{Op: "init", Status: http.StatusUnauthorized, Body: "unauthorized domain"}
	}}
	w := mount(t, page, VariantCookieFrame, backend)
	require.Equal(t, StateFailed, w.State())

	alerts := page.Alerts()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "unauthorized domain")
	assert.Contains(t, alerts[0], "initializing")

	action, err := w.Click(context.Background())
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, ActionAlert, action.Kind)
	el.Click()

	assert.Zero(t, backend.profileCalls.Load(), "failed widget must not call /profile")
	alerts = page.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, alerts[0], alerts[1])
	assert.Equal(t, alerts[0], alerts[2])
}

func TestInitMalformedReplyDoesNotLatch(t *testing.T) {
	var profileHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/init":
			_, _ = w.Write([]byte("Authenticated"))
		case "/profile":
			profileHits.Add(1)
			_, _ = w.Write([]byte(`{"url":"https://login.example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	w, err := New(context.Background(), page, Config{BaseURL: srv.URL}, Deps{Logger: logging.New("error")})
	require.NoError(t, err)
	state, err := w.WaitReady(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateInitializing, state)
	assert.Empty(t, page.Alerts())
	assert.Equal(t, "", w.Nonce())

	action, err := w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionFrame, action.Kind)
	assert.Equal(t, int32(1), profileHits.Load())
	assert.Empty(t, page.Alerts())
}

func TestInitTransportErrorLatches(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	w, err := New(context.Background(), page, Config{BaseURL: base}, Deps{Logger: logging.New("error")})
	require.NoError(t, err)
	state, err := w.WaitReady(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, state)
	require.Len(t, page.Alerts(), 1)

	_, err = w.Click(context.Background())
	assert.ErrorIs(t, err, ErrInitFailed)
}

func TestProfileFailureAlertsWithoutLatching(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	calls := 0
	backend := &fakeBackend{profileFn: func(session.Credentials) (session.ProfileResult, error) {
		calls++
		if calls == 1 {
			return session.ProfileResult{}, &session.StatusError{Op: "profile", Status: http.StatusBadRequest, Body: "token expired"}
		}
		return session.ProfileResult{Kind: session.KindRedirect, URL: "https://x.example.com"}, nil
	}}
	w := mount(t, page, VariantCookieFrame, backend)

	action, err := w.Click(context.Background())
	require.Error(t, err)
	assert.Equal(t, ActionAlert, action.Kind)
	assert.Contains(t, action.Message, "token expired")
	assert.Contains(t, action.Message, "ready")
	assert.Equal(t, StateReady, w.State())

	action, err = w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionFrame, action.Kind)
}

func TestMapVariantOpensOverlayForProfile(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	backend := &fakeBackend{profileFn: func(creds session.Credentials) (session.ProfileResult, error) {
		return session.ProfileResult{Kind: session.KindProfile, Data: json.RawMessage(`{"first_name":"Ada"}`)}, nil
	}}
	w := mount(t, page, VariantMapPicker, backend)

	action, err := w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionOverlay, action.Kind)
	assert.Equal(t, []string{"http://localhost:9899/map.html"}, page.Overlays())
	assert.JSONEq(t, `{"first_name":"Ada"}`, string(action.Profile))
	assert.True(t, backend.lastCreds.KeyInQuery)
}

func TestProfileWithoutOverlayIsLogged(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	w := mount(t, page, VariantCookieFrame, &fakeBackend{})

	action, err := w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action.Kind)
	assert.Empty(t, page.Overlays())
	assert.Equal(t, "n-1", page.Cookies().Get("uber-nonce"), "profile answers keep the nonce")
}

func TestMalformedJSONIsNotAlerted(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	backend := &fakeBackend{profileFn: func(session.Credentials) (session.ProfileResult, error) {
		var raw json.RawMessage
		err := json.Unmarshal([]byte("Authenticated"), &raw)
		return session.ProfileResult{}, err
	}}
	w := mount(t, page, VariantCookieFrame, backend)

	_, err := w.Click(context.Background())
	var syn *json.SyntaxError
	require.True(t, errors.As(err, &syn))
	assert.Empty(t, page.Alerts())
}

func TestClickBeforeInitCompletes(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	release := make(chan struct{})
	backend := &fakeBackend{initFn: func() (string, error) {
		<-release
		return "late", nil
	}}
	w, err := New(context.Background(), page, Config{}, Deps{Backend: backend, Logger: logging.New("error")})
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, w.State())

	_, err = w.Click(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", backend.lastCreds.Nonce, "click races ahead of init")

	close(release)
	state, err := w.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
	assert.Equal(t, "late", w.Nonce())
}

func TestWaitReadyHonorsContext(t *testing.T) {
	page, _ := newPage(t, map[string]string{"data-apikey": "key-1"})
	block := make(chan struct{})
	defer close(block)
	backend := &fakeBackend{initFn: func() (string, error) { <-block; return "", nil }}
	w, err := New(context.Background(), page, Config{}, Deps{Backend: backend, Logger: logging.New("error")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := w.WaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateInitializing, state)
}

func TestElementClickUsesSessionClient(t *testing.T) {
	var profileHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/init":
			_, _ = w.Write([]byte(`{"nonce":"srv-nonce"}`))
		case "/profile":
			profileHits.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "srv-nonce", body["nonce"])
			assert.Equal(t, "https://shop.example.com", body["origin"])
			_, _ = w.Write([]byte(`{"url":"https://login.example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	page, el := newPage(t, map[string]string{"data-apikey": "key-1"})
	w, err := New(context.Background(), page, Config{BaseURL: srv.URL}, Deps{Logger: logging.New("error")})
	require.NoError(t, err)
	_, err = w.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "srv-nonce", page.Cookies().Get(DefaultCookieName))

	el.Click()
	assert.Equal(t, int32(1), profileHits.Load())
	assert.Equal(t, []string{"https://login.example.com"}, page.Frames())
	assert.Equal(t, "", page.Cookies().Get(DefaultCookieName))
}

func TestVariantByName(t *testing.T) {
	v, ok := VariantByName("map-picker")
	require.True(t, ok)
	assert.Equal(t, "/map.html", v.OverlayURL)
	_, ok = VariantByName("nope")
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
