// Package widget is the one-click button controller. It binds to a host
// element, exchanges the element's API key for a nonce as soon as it is
// constructed, and on click opens the checkout URL or profile page the backend
// hands back.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/wolfman30/rideclick/internal/session"
	"github.com/wolfman30/rideclick/pkg/logging"
)

var (
	ErrElementNotFound = errors.New("widget: expecting a non-null bound element")
	ErrMissingAPIKey   = errors.New("widget: expecting an API key")
	// ErrInitFailed is returned by Click once init has failed.
	ErrInitFailed = errors.New("widget: init failed")
)

const (
	DefaultElementID         = "uber-one-click"
	DefaultAPIKeyAttribute   = "data-apikey"
	DefaultCallbackAttribute = "data-callback"
	DefaultCookieName        = "uber-nonce"
	DefaultBaseURL           = "http://localhost:9899"
)

// State is the controller lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the subset of session.Client the widget calls.
type Backend interface {
	Init(ctx context.Context, apiKey, origin string) (string, error)
	RequestProfile(ctx context.Context, creds session.Credentials, origin string) (session.ProfileResult, error)
}

// Config binds a widget to its element and backend.
type Config struct {
	ElementID         string
	APIKeyAttribute   string
	CallbackAttribute string
	BaseURL           string
	// CookieName keys the nonce in the page cookie jar (cookie storage only).
	CookieName string
	Variant    Variant
}

func (c Config) withDefaults() Config {
	if c.ElementID == "" {
		c.ElementID = DefaultElementID
	}
	if c.APIKeyAttribute == "" {
		c.APIKeyAttribute = DefaultAPIKeyAttribute
	}
	if c.CallbackAttribute == "" {
		c.CallbackAttribute = DefaultCallbackAttribute
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.Variant.Name == "" {
		c.Variant = VariantCookieFrame
	}
	return c
}

// Deps are the collaborators of a widget. A nil Backend means a session
// client for Config.BaseURL.
type Deps struct {
	Backend Backend
	Logger  *logging.Logger
}

// ActionKind says what a click did.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionNavigate
	ActionFrame
	ActionOverlay
	ActionAlert
)

func (k ActionKind) String() string {
	switch k {
	case ActionNavigate:
		return "navigate"
	case ActionFrame:
		return "frame"
	case ActionOverlay:
		return "overlay"
	case ActionAlert:
		return "alert"
	default:
		return "none"
	}
}

// Action is the outcome of a click.
type Action struct {
	Kind    ActionKind
	URL     string
	Message string
	Profile json.RawMessage
}

// Widget is one mounted button. It lives as long as its page.
type Widget struct {
	cfg     Config
	page    Page
	backend Backend
	logger  *logging.Logger
	apiKey  string
	// pageCtx scopes requests fired from the element's click handler.
	pageCtx context.Context

	mu       sync.Mutex
	state    State
	nonce    string
	latched  string
	initDone chan struct{}
}

// New binds a widget to cfg.ElementID on page and issues init. It fails before
// any request when the element or its API key is missing. Init runs in the
// background; WaitReady blocks until it settles.
func New(ctx context.Context, page Page, cfg Config, deps Deps) (*Widget, error) {
	cfg = cfg.withDefaults()
	logger := deps.Logger.Component("widget")

	el, ok := page.Element(cfg.ElementID)
	if !ok || el == nil {
		return nil, fmt.Errorf("%w: #%s", ErrElementNotFound, cfg.ElementID)
	}
	apiKey, _ := el.Attribute(cfg.APIKeyAttribute)
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: attribute %s on #%s", ErrMissingAPIKey, cfg.APIKeyAttribute, cfg.ElementID)
	}
	if cb, ok := el.Attribute(cfg.CallbackAttribute); ok {
		logger.Debug("data callback attribute present", "callback", cb)
	}

	backend := deps.Backend
	if backend == nil {
		backend = session.New(cfg.BaseURL)
	}

	w := &Widget{
		cfg:      cfg,
		page:     page,
		backend:  backend,
		logger:   &logging.Logger{Logger: logger.With("element_id", cfg.ElementID, "variant", cfg.Variant.Name)},
		apiKey:   apiKey,
		pageCtx:  ctx,
		state:    StateUninitialized,
		initDone: make(chan struct{}),
	}
	el.Mount(ButtonMarkup, func() {
		if _, err := w.Click(w.pageCtx); err != nil {
			w.logger.Warn("click failed", "error", err)
		}
	})

	w.setState(StateInitializing)
	go w.initialize(ctx)
	return w, nil
}

func (w *Widget) initialize(ctx context.Context) {
	defer close(w.initDone)

	nonce, err := w.backend.Init(ctx, w.apiKey, w.page.Origin())
	if err != nil && isDecodeError(err) {
		// A 2xx reply that is not JSON leaves the widget initializing with no
		// nonce; clicks still go out.
		w.logger.Error("init reply is not JSON", "error", err)
		return
	}
	if err != nil {
		// Non-2xx replies and transport failures both latch.
		msg := w.alertText(err, StateInitializing)
		w.mu.Lock()
		w.latched = msg
		w.state = StateFailed
		w.mu.Unlock()
		w.logger.Error("init failed", "error", err)
		w.page.Alert(msg)
		return
	}

	w.mu.Lock()
	w.storeNonceLocked(nonce)
	w.state = StateReady
	w.mu.Unlock()
	w.logger.Info("widget ready")
}

// WaitReady blocks until init has settled and returns the resulting state.
func (w *Widget) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-w.initDone:
		return w.State(), nil
	case <-ctx.Done():
		return w.State(), ctx.Err()
	}
}

// State reports the lifecycle state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Nonce returns the tracked nonce, empty when none.
func (w *Widget) Nonce() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nonceLocked()
}

// Click requests the profile and acts on the answer. After a failed init it
// re-alerts the latched message without calling the backend.
func (w *Widget) Click(ctx context.Context) (Action, error) {
	w.mu.Lock()
	state := w.state
	latched := w.latched
	nonce := w.nonceLocked()
	w.mu.Unlock()

	if state == StateFailed {
		w.page.Alert(latched)
		return Action{Kind: ActionAlert, Message: latched}, ErrInitFailed
	}
	if state == StateInitializing {
		// Init has not answered yet; the request goes out with whatever nonce is stored.
		w.logger.Warn("click before init completed", "has_nonce", nonce != "")
	}

	creds := session.Credentials{APIKey: w.apiKey, Nonce: nonce, KeyInQuery: w.cfg.Variant.KeyInQuery}
	res, err := w.backend.RequestProfile(ctx, creds, w.page.Origin())
	if err != nil {
		if isDecodeError(err) {
			return Action{}, err
		}
		msg := w.alertText(err, state)
		w.page.Alert(msg)
		return Action{Kind: ActionAlert, Message: msg}, err
	}

	switch res.Kind {
	case session.KindRedirect:
		return w.redirect(res.URL), nil
	default:
		return w.showProfile(res.Data), nil
	}
}

func (w *Widget) redirect(target string) Action {
	if w.cfg.Variant.ClearNonceOnRedirect {
		w.mu.Lock()
		w.clearNonceLocked()
		w.mu.Unlock()
	}
	if w.cfg.Variant.Redirect == PresentNavigate {
		w.page.Navigate(target)
		return Action{Kind: ActionNavigate, URL: target}
	}
	w.page.OpenFrame(target)
	return Action{Kind: ActionFrame, URL: target}
}

func (w *Widget) showProfile(data json.RawMessage) Action {
	if w.cfg.Variant.OverlayURL == "" {
		w.logger.Info("profile received", "bytes", len(data))
		return Action{Kind: ActionNone, Profile: data}
	}
	target := resolve(w.cfg.BaseURL, w.cfg.Variant.OverlayURL)
	w.page.OpenOverlay(target)
	return Action{Kind: ActionOverlay, URL: target, Profile: data}
}

func (w *Widget) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Widget) nonceLocked() string {
	if w.cfg.Variant.NonceStorage == StorageCookie {
		return w.page.Cookies().Get(w.cfg.CookieName)
	}
	return w.nonce
}

func (w *Widget) storeNonceLocked(nonce string) {
	if w.cfg.Variant.NonceStorage == StorageCookie {
		w.page.Cookies().Set(w.cfg.CookieName, nonce)
		return
	}
	w.nonce = nonce
}

func (w *Widget) clearNonceLocked() {
	if w.cfg.Variant.NonceStorage == StorageCookie {
		w.page.Cookies().Clear(w.cfg.CookieName)
		return
	}
	w.nonce = ""
}

// alertText renders the user-facing failure: the raw body plus the state the
// widget was in when the request went out.
func (w *Widget) alertText(err error, state State) string {
	if se, ok := session.AsStatusError(err); ok {
		return fmt.Sprintf("failed to parse data %s state %s", se.Body, state)
	}
	return fmt.Sprintf("failed to parse data %s state %s", err.Error(), state)
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}

func resolve(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
