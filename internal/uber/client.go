package uber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

var tracer = otel.Tracer("rideclick.internal.uber")

// DefaultBaseURL is the production ride API.
const DefaultBaseURL = "https://api.uber.com"

// OAuth2 scopes requested from riders. request and request_receipt are
// privileged and must be enabled on the application.
const (
	ScopeProfile        = "profile"
	ScopeHistory        = "history"
	ScopePlaces         = "places"
	ScopeRequest        = "request"
	ScopeRequestReceipt = "request_receipt"
)

// Scopes is the full scope list used by the authorization flow.
var Scopes = []string{ScopeProfile, ScopeHistory, ScopePlaces, ScopeRequest, ScopeRequestReceipt}

// OAuth2Config builds the authorization-code config for the ride API.
func OAuth2Config(clientID, clientSecret, authURL, tokenURL, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       Scopes,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// APIError is a non-2xx answer from the ride API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uber: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client calls the ride API on behalf of one rider.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient authenticates requests with the rider's token, refreshing it
// through cfg when it expires.
func NewClient(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, baseURL string) *Client {
	return NewClientWithHTTP(baseURL, cfg.Client(ctx, token))
}

// NewClientWithHTTP uses hc as-is; hc must already attach credentials.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Profile retrieves the authenticated rider.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "uber.profile")
	defer span.End()

	var p Profile
	if err := c.do(ctx, http.MethodGet, "/v1.2/me", nil, &p); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &p, nil
}

// PriceEstimates lists price ranges for every product serving the trip.
func (c *Client) PriceEstimates(ctx context.Context, req *EstimateRequest) ([]*PriceEstimate, error) {
	ctx, span := tracer.Start(ctx, "uber.price_estimates")
	defer span.End()

	q := url.Values{}
	q.Set("start_latitude", formatCoord(req.StartLatitude))
	q.Set("start_longitude", formatCoord(req.StartLongitude))
	q.Set("end_latitude", formatCoord(req.EndLatitude))
	q.Set("end_longitude", formatCoord(req.EndLongitude))
	if req.SeatCount > 0 {
		q.Set("seat_count", strconv.Itoa(req.SeatCount))
	}

	var out struct {
		Prices []*PriceEstimate `json:"prices"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1.2/estimates/price?"+q.Encode(), nil, &out); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("uber.estimates", len(out.Prices)))
	return out.Prices, nil
}

// UpfrontFare asks for the fixed fare of one product.
func (c *Client) UpfrontFare(ctx context.Context, req *EstimateRequest) (*UpfrontFare, error) {
	ctx, span := tracer.Start(ctx, "uber.upfront_fare")
	defer span.End()
	span.SetAttributes(attribute.String("uber.product_id", req.ProductID))

	var fare UpfrontFare
	if err := c.do(ctx, http.MethodPost, "/v1.2/requests/estimate", req, &fare); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &fare, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("uber: encode request: %w", err)
		}
		rdr = bytes.NewReader(blob)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("uber: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uber: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("uber: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(blob)}
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return fmt.Errorf("uber: decode response: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
