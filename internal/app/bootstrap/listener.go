package bootstrap

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/acme/autocert"

	appconfig "github.com/wolfman30/rideclick/internal/config"
)

// UseTLS reports whether the server should terminate TLS itself.
func UseTLS(cfg *appconfig.Config) bool {
	return cfg != nil && !cfg.HTTP1 && len(cfg.TLSDomains) > 0
}

// BuildACMEManager returns an autocert manager restricted to the configured
// domains with certificates cached on disk.
func BuildACMEManager(cfg *appconfig.Config) (*autocert.Manager, error) {
	if !UseTLS(cfg) {
		return nil, fmt.Errorf("bootstrap: tls domains are required")
	}
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
		Cache:      autocert.DirCache(cfg.TLSCacheDir),
	}, nil
}

// BuildListener returns the TLS listener for the ACME manager, or a plain
// TCP listener on the configured port.
func BuildListener(cfg *appconfig.Config, m *autocert.Manager) (net.Listener, error) {
	if m != nil {
		return m.Listener(), nil
	}
	return net.Listen("tcp", ":"+cfg.Port)
}

// RedirectHandler sends plain HTTP traffic to target, keeping the path and
// query. ACME HTTP-01 challenges are answered when m is set.
func RedirectHandler(target string, m *autocert.Manager) http.Handler {
	target = strings.TrimRight(target, "/")
	redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
	if m == nil {
		return redirect
	}
	return m.HTTPHandler(redirect)
}
