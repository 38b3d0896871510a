package picker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/rideclick/internal/uber"
	"github.com/wolfman30/rideclick/pkg/logging"
)

// DefaultCenter is shown when the rider's position is unknown.
var DefaultCenter = Point{Lat: -34.397, Lng: 150.644}

const (
	DefaultZoom = 8

	MsgGeolocationFailed      = "Geolocation failed"
	MsgGeolocationUnsupported = "Your browser does not support geolocation"
)

// ErrGeolocationUnsupported is returned by a Geolocator with no position source.
var ErrGeolocationUnsupported = errors.New("picker: geolocation unsupported")

// Geolocator resolves the rider's current position.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (Point, error)
}

// GeolocatorFunc adapts a function to Geolocator.
type GeolocatorFunc func(ctx context.Context) (Point, error)

func (f GeolocatorFunc) CurrentPosition(ctx context.Context) (Point, error) { return f(ctx) }

// FixedPosition always reports p.
func FixedPosition(p Point) Geolocator {
	return GeolocatorFunc(func(context.Context) (Point, error) { return p, nil })
}

// Place is one search candidate. Location and Viewport are nil when the
// provider returned no geometry.
type Place struct {
	Name     string  `json:"name"`
	Address  string  `json:"address,omitempty"`
	PlaceID  string  `json:"place_id,omitempty"`
	Location *Point  `json:"location,omitempty"`
	Viewport *Bounds `json:"viewport,omitempty"`
}

// Searcher finds places matching free text, optionally biased towards near.
type Searcher interface {
	Search(ctx context.Context, query string, near *Point) ([]Place, error)
}

// Picker keeps the start and end points of a trip in sync with a MapView.
type Picker struct {
	view   MapView
	logger *logging.Logger

	mu      sync.Mutex
	points  map[Role]Point
	places  map[Role]string
	markers map[Role][]Marker
	path    Path
	draws   int
}

// New drives view.
func New(view MapView, logger *logging.Logger) *Picker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Picker{
		view:    view,
		logger:  logger.Component("picker"),
		points:  make(map[Role]Point),
		places:  make(map[Role]string),
		markers: make(map[Role][]Marker),
	}
}

// Start centers the map on the rider. A known position becomes the start
// point. Without one the map falls back to DefaultCenter with an info window.
func (p *Picker) Start(ctx context.Context, geo Geolocator) {
	if geo == nil {
		p.fallback(MsgGeolocationUnsupported)
		return
	}
	pos, err := geo.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, ErrGeolocationUnsupported) {
			p.fallback(MsgGeolocationUnsupported)
			return
		}
		p.logger.Warn("geolocation failed", "error", err)
		p.fallback(MsgGeolocationFailed)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.points[RoleStart] = pos
	delete(p.places, RoleStart)
	p.markers[RoleStart] = append(p.markers[RoleStart], p.view.AddMarker("Start", pos, PinIcon))
	p.view.Center(pos, DefaultZoom)
}

func (p *Picker) fallback(msg string) {
	p.view.Center(DefaultCenter, DefaultZoom)
	p.view.ShowInfo(DefaultCenter, msg)
}

// PlacesChanged applies a new candidate list for role.
func (p *Picker) PlacesChanged(role Role, places []Place) {
	if len(places) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.markers[role] {
		m.Remove()
	}
	p.markers[role] = nil

	var bounds Bounds
	for _, place := range places {
		if place.Location == nil {
			p.logger.Debug("place has no geometry", "name", place.Name)
			continue
		}
		loc := *place.Location
		p.markers[role] = append(p.markers[role], p.view.AddMarker(place.Name, loc, PinIcon))
		if place.Viewport != nil {
			bounds.Union(*place.Viewport)
		} else {
			bounds.Extend(loc)
		}
		p.points[role] = loc
		p.places[role] = place.PlaceID
	}
	if !bounds.IsEmpty() {
		p.view.FitBounds(bounds)
	}

	start, okStart := p.points[RoleStart]
	end, okEnd := p.points[RoleEnd]
	if !okStart || !okEnd {
		return
	}
	if p.path != nil {
		p.path.Remove()
	}
	p.path = p.view.DrawPath(start, end, ArrowPath)
	p.draws++
}

// Search runs query through s and applies the results to the role of the
// input at index.
func (p *Picker) Search(ctx context.Context, s Searcher, index int, query string) error {
	role := RoleForIndex(index)
	var near *Point
	if start, ok := p.Point(RoleStart); ok {
		near = &start
	}
	places, err := s.Search(ctx, query, near)
	if err != nil {
		return fmt.Errorf("picker: search %s: %w", role, err)
	}
	p.PlacesChanged(role, places)
	return nil
}

// Point returns the picked point for role.
func (p *Picker) Point(role Role) (Point, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.points[role]
	return pt, ok
}

// Draws counts path renders.
func (p *Picker) Draws() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draws
}

// EstimateRequest builds a fare query from the picked points.
func (p *Picker) EstimateRequest(seats int) (uber.EstimateRequest, bool) {
	start, okStart := p.Point(RoleStart)
	end, okEnd := p.Point(RoleEnd)
	if !okStart || !okEnd {
		return uber.EstimateRequest{}, false
	}
	p.mu.Lock()
	startPlace, endPlace := p.places[RoleStart], p.places[RoleEnd]
	p.mu.Unlock()
	return uber.EstimateRequest{
		StartPlace:     startPlace,
		EndPlace:       endPlace,
		StartLatitude:  start.Lat,
		StartLongitude: start.Lng,
		EndLatitude:    end.Lat,
		EndLongitude:   end.Lng,
		SeatCount:      seats,
	}, true
}
