package picker

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// searchRadius biases text search around a known point, in meters.
const searchRadius = 50000

// GooglePlaces searches with the Places text search API.
type GooglePlaces struct {
	client *maps.Client
}

// NewGooglePlaces builds a searcher for apiKey. Extra options are applied
// after the key.
func NewGooglePlaces(apiKey string, opts ...maps.ClientOption) (*GooglePlaces, error) {
	if apiKey == "" {
		return nil, errors.New("picker: maps api key required")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("picker: maps client: %w", err)
	}
	return &GooglePlaces{client: client}, nil
}

func (g *GooglePlaces) Search(ctx context.Context, query string, near *Point) ([]Place, error) {
	req := &maps.TextSearchRequest{Query: query}
	if near != nil {
		req.Location = &maps.LatLng{Lat: near.Lat, Lng: near.Lng}
		req.Radius = searchRadius
	}
	resp, err := g.client.TextSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		place := Place{Name: r.Name, Address: r.FormattedAddress, PlaceID: r.PlaceID}
		loc := r.Geometry.Location
		if loc.Lat != 0 || loc.Lng != 0 {
			place.Location = &Point{Lat: loc.Lat, Lng: loc.Lng}
		}
		vp := r.Geometry.Viewport
		if vp != (maps.LatLngBounds{}) {
			b := NewBounds(
				Point{Lat: vp.SouthWest.Lat, Lng: vp.SouthWest.Lng},
				Point{Lat: vp.NorthEast.Lat, Lng: vp.NorthEast.Lng},
			)
			place.Viewport = &b
		}
		places = append(places, place)
	}
	return places, nil
}
