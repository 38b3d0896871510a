package cookies

import (
	"context"
	"fmt"

	"github.com/steipete/sweetcookie"
)

// BrowserImport selects where ImportFromBrowser looks for an existing cookie.
type BrowserImport struct {
	// URL is the site the cookie belongs to.
	URL string
	// Browsers limits the profiles read; empty means sweetcookie's defaults.
	Browsers []sweetcookie.Browser
	// InlineJSON is a cookie export tried before any browser profile.
	InlineJSON []byte
}

// ImportFromBrowser copies the first cookie named key found in local browser
// profiles (or InlineJSON) into store. It reports whether a value was found and
// any non-fatal warnings from the readers.
func ImportFromBrowser(ctx context.Context, store Store, key string, opts BrowserImport) (bool, []string, error) {
	res, err := sweetcookie.Get(ctx, sweetcookie.Options{
		URL:      opts.URL,
		Names:    []string{key},
		Browsers: opts.Browsers,
		Mode:     sweetcookie.ModeFirst,
		Inline:   sweetcookie.InlineCookies{JSON: opts.InlineJSON},
	})
	if err != nil {
		return false, nil, fmt.Errorf("cookies: read browser cookies: %w", err)
	}
	for _, c := range res.Cookies {
		if c.Name == key && c.Value != "" {
			store.Set(key, c.Value)
			return true, res.Warnings, nil
		}
	}
	return false, res.Warnings, nil
}
