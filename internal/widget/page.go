package widget

import (
	"fmt"
	"io"
	"sync"

	"github.com/wolfman30/rideclick/internal/cookies"
)

// Element is the host element the widget binds to.
type Element interface {
	Attribute(name string) (string, bool)
	// Mount replaces the element content and arms onClick.
	Mount(markup string, onClick func())
}

// Page is the host page surface the widget drives.
type Page interface {
	Element(id string) (Element, bool)
	Origin() string
	// Cookies is the page cookie jar.
	Cookies() cookies.Store
	Navigate(url string)
	OpenFrame(url string)
	OpenOverlay(url string)
	// Alert is blocking in a browser; here it only has to be synchronous.
	Alert(message string)
}

// HeadlessPage is an in-process Page that records everything the widget does.
type HeadlessPage struct {
	origin  string
	cookies cookies.Store
	out     io.Writer

	mu          sync.Mutex
	elements    map[string]*HeadlessElement
	alerts      []string
	navigations []string
	frames      []string
	overlays    []string
}

// NewHeadlessPage creates a page served from origin. A nil store gets an
// in-memory jar. Alerts are echoed to out when it is non-nil.
func NewHeadlessPage(origin string, store cookies.Store, out io.Writer) *HeadlessPage {
	if store == nil {
		store = cookies.NewMemoryStore()
	}
	return &HeadlessPage{
		origin:   origin,
		cookies:  store,
		out:      out,
		elements: make(map[string]*HeadlessElement),
	}
}

// AddElement places an element with the given attributes on the page.
func (p *HeadlessPage) AddElement(id string, attrs map[string]string) *HeadlessElement {
	el := &HeadlessElement{id: id, attrs: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		el.attrs[k] = v
	}
	p.mu.Lock()
	p.elements[id] = el
	p.mu.Unlock()
	return el
}

func (p *HeadlessPage) Element(id string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func (p *HeadlessPage) Origin() string { return p.origin }

func (p *HeadlessPage) Cookies() cookies.Store { return p.cookies }

func (p *HeadlessPage) Navigate(url string) {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	p.mu.Unlock()
}

func (p *HeadlessPage) OpenFrame(url string) {
	p.mu.Lock()
	p.frames = append(p.frames, url)
	p.mu.Unlock()
}

func (p *HeadlessPage) OpenOverlay(url string) {
	p.mu.Lock()
	p.overlays = append(p.overlays, url)
	p.mu.Unlock()
}

func (p *HeadlessPage) Alert(message string) {
	p.mu.Lock()
	p.alerts = append(p.alerts, message)
	p.mu.Unlock()
	if p.out != nil {
		fmt.Fprintf(p.out, "alert: %s\n", message)
	}
}

// Alerts returns a copy of every alert shown so far.
func (p *HeadlessPage) Alerts() []string { return p.snapshot(&p.alerts) }

// Navigations returns every full-page navigation.
func (p *HeadlessPage) Navigations() []string { return p.snapshot(&p.navigations) }

// Frames returns every URL opened in an embedded frame.
func (p *HeadlessPage) Frames() []string { return p.snapshot(&p.frames) }

// Overlays returns every URL opened in the in-page overlay.
func (p *HeadlessPage) Overlays() []string { return p.snapshot(&p.overlays) }

func (p *HeadlessPage) snapshot(src *[]string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), (*src)...)
}

// HeadlessElement is an element on a HeadlessPage.
type HeadlessElement struct {
	id    string
	attrs map[string]string

	mu      sync.Mutex
	markup  string
	onClick func()
}

func (e *HeadlessElement) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *HeadlessElement) Mount(markup string, onClick func()) {
	e.mu.Lock()
	e.markup = markup
	e.onClick = onClick
	e.mu.Unlock()
}

// Markup returns the mounted content.
func (e *HeadlessElement) Markup() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markup
}

// Click fires the mounted click handler, if any.
func (e *HeadlessElement) Click() {
	e.mu.Lock()
	fn := e.onClick
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
