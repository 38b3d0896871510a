package widget

// Storage selects where the nonce lives.
type Storage int

const (
	StorageMemory Storage = iota
	StorageCookie
)

// Presentation selects how a redirect URL is opened.
type Presentation int

const (
	PresentFrame Presentation = iota
	PresentNavigate
)

// Variant captures the differences between the shipped widget flavors.
type Variant struct {
	Name         string
	NonceStorage Storage
	Redirect     Presentation
	// ClearNonceOnRedirect makes the nonce single-use.
	ClearNonceOnRedirect bool
	// OverlayURL is opened when the backend returns a profile instead of a
	// URL. Relative values resolve against the backend base URL.
	OverlayURL string
	KeyInQuery bool
}

var (
	// VariantCookieFrame keeps the nonce in a cookie, opens redirects in an
	// embedded frame and drops the nonce once it has been redeemed.
	VariantCookieFrame = Variant{
		Name:                 "cookie-frame",
		NonceStorage:         StorageCookie,
		Redirect:             PresentFrame,
		ClearNonceOnRedirect: true,
	}
	// VariantMemoryRedirect keeps the nonce in memory and navigates the page.
	VariantMemoryRedirect = Variant{
		Name:         "memory-redirect",
		NonceStorage: StorageMemory,
		Redirect:     PresentNavigate,
	}
	// VariantMapPicker opens the location picker page when the rider is
	// already authorized.
	VariantMapPicker = Variant{
		Name:         "map-picker",
		NonceStorage: StorageMemory,
		Redirect:     PresentFrame,
		OverlayURL:   "/map.html",
		KeyInQuery:   true,
	}
)

// VariantByName looks a preset up by its Name.
func VariantByName(name string) (Variant, bool) {
	for _, v := range []Variant{VariantCookieFrame, VariantMemoryRedirect, VariantMapPicker} {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
