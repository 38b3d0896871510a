package picker

import (
	"encoding/json"
	"math"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Role names the two points a rider picks.
type Role string

const (
	RoleStart Role = "start"
	RoleEnd   Role = "end"
)

// Roles lists every role in input order.
var Roles = []Role{RoleStart, RoleEnd}

// RoleForIndex maps a search input position to its role.
func RoleForIndex(i int) Role {
	if i <= 0 {
		return RoleStart
	}
	return RoleEnd
}

// Bounds is a lat/lng rectangle that grows to cover what is added to it. The
// zero value is empty.
type Bounds struct {
	SouthWest Point `json:"southwest"`
	NorthEast Point `json:"northeast"`
	set       bool
}

// NewBounds returns bounds spanning sw..ne.
func NewBounds(sw, ne Point) Bounds {
	b := Bounds{}
	b.Extend(sw)
	b.Extend(ne)
	return b
}

// IsEmpty reports whether nothing has been added yet.
func (b Bounds) IsEmpty() bool { return !b.set }

// Extend grows b to include p.
func (b *Bounds) Extend(p Point) {
	if !b.set {
		b.SouthWest, b.NorthEast, b.set = p, p, true
		return
	}
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
	b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
	b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
}

// Union grows b to include o.
func (b *Bounds) Union(o Bounds) {
	if o.IsEmpty() {
		return
	}
	b.Extend(o.SouthWest)
	b.Extend(o.NorthEast)
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Point) bool {
	if !b.set {
		return false
	}
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

func (b *Bounds) UnmarshalJSON(data []byte) error {
	var raw struct {
		SouthWest Point `json:"southwest"`
		NorthEast Point `json:"northeast"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = NewBounds(raw.SouthWest, raw.NorthEast)
	return nil
}
