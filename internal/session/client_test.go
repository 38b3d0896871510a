package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/rideclick/internal/uber"
)

func TestInitSendsKeyAndOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/init", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key-1", body["api_key"])
		assert.Equal(t, "https://shop.example.com", body["origin"])
		_, _ = w.Write([]byte(`{"nonce":"n-123"}`))
	}))
	defer srv.Close()

	nonce, err := New(srv.URL+"/").Init(context.Background(), "key-1", "https://shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "n-123", nonce)
}

func TestInitNon2xxCarriesRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized domain"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Init(context.Background(), "key-1", "https://evil.example.com")
	se, ok := AsStatusError(err)
	require.True(t, ok, "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "unauthorized domain", se.Body)
	assert.Equal(t, "init", se.Op)
}

func TestRequestProfileRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "n-1", body["nonce"])
		_, _ = w.Write([]byte(`{"url":"https://login.example.com/authorize?state=s"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).RequestProfile(context.Background(),
		Credentials{APIKey: "key-1", Nonce: "n-1", KeyInQuery: true}, "https://shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, KindRedirect, res.Kind)
	assert.Equal(t, "https://login.example.com/authorize?state=s", res.URL)
}

func TestRequestProfileOpaqueData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object without url", `{"first_name":"Ada","uuid":"u-1"}`},
		{"empty url", `{"url":"","first_name":"Ada"}`},
		{"array", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := New(srv.URL).RequestProfile(context.Background(), Credentials{Nonce: "n"}, "o")
			require.NoError(t, err)
			assert.Equal(t, KindProfile, res.Kind)
			assert.JSONEq(t, tt.body, string(res.Data))
		})
	}
}

func TestRequestProfileMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`Authenticated`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestProfile(context.Background(), Credentials{Nonce: "n"}, "o")
	require.Error(t, err)
	var syn *json.SyntaxError
	assert.ErrorAs(t, err, &syn)
	_, isStatus := AsStatusError(err)
	assert.False(t, isStatus)
}

func TestRequestProfileOmitsBlankCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasKey := body["api_key"]
		assert.False(t, hasKey)
		assert.Equal(t, "n-9", body["nonce"])
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestProfile(context.Background(), Credentials{Nonce: "n-9", KeyInQuery: true}, "o")
	require.NoError(t, err)
}

func TestEstimatePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estimate-price", r.URL.Path)
		_, _ = w.Write([]byte(`[{"estimate":{"product_id":"p1"},"upfront_fare":null}]`))
	}))
	defer srv.Close()

	quotes, err := New(srv.URL).EstimatePrice(context.Background(), uber.EstimateRequest{StartLatitude: 1, EndLatitude: 2})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "p1", quotes[0].Estimate.ProductID)
	assert.Nil(t, quotes[0].UpfrontFare)
}

func TestClientHasNoTimeout(t *testing.T) {
	c := New("http://localhost:9899")
	assert.Zero(t, c.http.Timeout)
	assert.Equal(t, "http://localhost:9899", c.BaseURL())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "redirect", KindRedirect.String())
	assert.Equal(t, "profile", KindProfile.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
