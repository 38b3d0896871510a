package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// JarStore reads and writes cookies for one site URL in an http.CookieJar.
// Handing Jar() to an http.Client makes the stored nonce part of every request
// to that site, the way a browser cookie jar does.
type JarStore struct {
	jar  http.CookieJar
	site *url.URL
}

// NewJarStore creates a store over a fresh public-suffix aware jar.
func NewJarStore(siteURL string) (*JarStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookies: create jar: %w", err)
	}
	return NewJarStoreFrom(jar, siteURL)
}

// NewJarStoreFrom wraps an existing jar.
func NewJarStoreFrom(jar http.CookieJar, siteURL string) (*JarStore, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("cookies: parse site url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cookies: site url %q must include scheme and host", siteURL)
	}
	return &JarStore{jar: jar, site: u}, nil
}

// Jar exposes the underlying jar for http.Client wiring.
func (s *JarStore) Jar() http.CookieJar { return s.jar }

func (s *JarStore) Get(key string) string {
	for _, c := range s.jar.Cookies(s.site) {
		if c.Name == key {
			return c.Value
		}
	}
	return ""
}

// Set writes a session cookie: no Expires, path "/".
func (s *JarStore) Set(key, value string) {
	s.jar.SetCookies(s.site, []*http.Cookie{{Name: key, Value: value, Path: "/"}})
}

// Clear overwrites the cookie with an expiry at the Unix epoch.
func (s *JarStore) Clear(key string) {
	s.jar.SetCookies(s.site, []*http.Cookie{{
		Name:    key,
		Path:    "/",
		Expires: time.Unix(0, 0).UTC(),
		MaxAge:  -1,
	}})
}
