// Package session talks to the widget backend: it exchanges an API key and
// origin for a nonce, then exchanges the nonce for a redirect URL or profile.
//
// Requests are never retried and carry no client-side timeout; only the
// caller's context ends one.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/rideclick/internal/uber"
)

// StatusError is a non-2xx backend answer. Body is the raw response text.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Kind tags a ProfileResult.
type Kind int

const (
	// KindProfile carries opaque profile JSON.
	KindProfile Kind = iota + 1
	// KindRedirect carries a URL the page should open.
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindProfile:
		return "profile"
	case KindRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// ProfileResult is either a redirect target or profile data.
type ProfileResult struct {
	Kind Kind
	URL  string
	Data json.RawMessage
}

// Credentials identify the caller on /profile. The nonce is sent when set,
// the API key when set; KeyInQuery also passes the key as ?key=.
type Credentials struct {
	APIKey     string
	Nonce      string
	KeyInQuery bool
}

type initRequest struct {
	APIKey string `json:"api_key"`
	Origin string `json:"origin"`
}

type initResponse struct {
	Nonce string `json:"nonce"`
}

type profileRequest struct {
	APIKey string `json:"api_key,omitempty"`
	Nonce  string `json:"nonce,omitempty"`
	Origin string `json:"origin"`
}

// Client issues widget backend calls against a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithJar shares a cookie jar so backend cookies ride along like in a browser.
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Init exchanges apiKey and origin for a nonce.
func (c *Client) Init(ctx context.Context, apiKey, origin string) (string, error) {
	blob, err := c.post(ctx, "init", c.baseURL+"/init", initRequest{APIKey: apiKey, Origin: origin})
	if err != nil {
		return "", err
	}
	var resp initResponse
	if err := json.Unmarshal(blob, &resp); err != nil {
		return "", fmt.Errorf("init: decode response: %w", err)
	}
	return resp.Nonce, nil
}

// RequestProfile exchanges credentials for a redirect URL or profile data.
func (c *Client) RequestProfile(ctx context.Context, creds Credentials, origin string) (ProfileResult, error) {
	endpoint := c.baseURL + "/profile"
	if creds.KeyInQuery && creds.APIKey != "" {
		endpoint += "?" + url.Values{"key": {creds.APIKey}}.Encode()
	}
	blob, err := c.post(ctx, "profile", endpoint, profileRequest{
		APIKey: creds.APIKey,
		Nonce:  creds.Nonce,
		Origin: origin,
	})
	if err != nil {
		return ProfileResult{}, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return ProfileResult{}, fmt.Errorf("profile: decode response: %w", err)
	}
	var probe struct {
		URL string `json:"url"`
	}
	// Non-object profiles are legal; they simply carry no url.
	_ = json.Unmarshal(raw, &probe)
	if probe.URL != "" {
		return ProfileResult{Kind: KindRedirect, URL: probe.URL}, nil
	}
	return ProfileResult{Kind: KindProfile, Data: raw}, nil
}

// EstimatePrice asks the backend for fare quotes between two points.
func (c *Client) EstimatePrice(ctx context.Context, req uber.EstimateRequest) ([]uber.FareQuote, error) {
	blob, err := c.post(ctx, "estimate-price", c.baseURL+"/estimate-price", req)
	if err != nil {
		return nil, err
	}
	var quotes []uber.FareQuote
	if err := json.Unmarshal(blob, &quotes); err != nil {
		return nil, fmt.Errorf("estimate-price: decode response: %w", err)
	}
	return quotes, nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: string(blob)}
	}
	return blob, nil
}
