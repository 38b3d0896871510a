package picker

import (
	"fmt"
	"io"
	"sync"
)

// Icon is a marker image.
type Icon struct {
	URL                       string
	Width, Height             int
	AnchorX, AnchorY          int
	ScaledWidth, ScaledHeight int
}

// PinIcon is the marker used for every picked place.
var PinIcon = Icon{
	URL:   "./assets/Pin.png",
	Width: 70, Height: 70,
	AnchorX: 17, AnchorY: 34,
	ScaledWidth: 25, ScaledHeight: 25,
}

// PathStyle decorates the start-to-end line.
type PathStyle struct {
	Symbol      string
	Scale       int
	StrokeColor string
	Offset      string
}

// ArrowPath draws an open arrow at the dropoff end.
var ArrowPath = PathStyle{Symbol: "FORWARD_OPEN_ARROW", Scale: 8, StrokeColor: "#493", Offset: "100%"}

// Marker is a placed marker.
type Marker interface{ Remove() }

// Path is a drawn line.
type Path interface{ Remove() }

// MapView is the map widget the picker drives.
type MapView interface {
	Center(at Point, zoom int)
	AddMarker(title string, at Point, icon Icon) Marker
	FitBounds(b Bounds)
	DrawPath(from, to Point, style PathStyle) Path
	ShowInfo(at Point, message string)
}

// TextView is a MapView that prints each map operation as a line.
type TextView struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextView writes to w.
func NewTextView(w io.Writer) *TextView { return &TextView{w: w} }

func (v *TextView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, format+"\n", args...)
}

func (v *TextView) Center(at Point, zoom int) {
	v.printf("center %.6f,%.6f zoom=%d", at.Lat, at.Lng, zoom)
}

func (v *TextView) AddMarker(title string, at Point, _ Icon) Marker {
	v.printf("marker %q at %.6f,%.6f", title, at.Lat, at.Lng)
	return textItem{v: v, label: "marker " + title}
}

func (v *TextView) FitBounds(b Bounds) {
	v.printf("fit %.6f,%.6f .. %.6f,%.6f", b.SouthWest.Lat, b.SouthWest.Lng, b.NorthEast.Lat, b.NorthEast.Lng)
}

func (v *TextView) DrawPath(from, to Point, _ PathStyle) Path {
	v.printf("path %.6f,%.6f -> %.6f,%.6f", from.Lat, from.Lng, to.Lat, to.Lng)
	return textItem{v: v, label: "path"}
}

func (v *TextView) ShowInfo(at Point, message string) {
	v.printf("info %q at %.6f,%.6f", message, at.Lat, at.Lng)
}

type textItem struct {
	v     *TextView
	label string
}

func (t textItem) Remove() { t.v.printf("remove %s", t.label) }
