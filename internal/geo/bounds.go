/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrNoPolygon = errors.New("geojson contains no polygon")

// Bounds is an axis-aligned lat/lng box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Covers reports whether o lies entirely inside b.
func (b Bounds) Covers(o Bounds) bool {
	return b.Contains(Point{Lat: o.MinLat, Lng: o.MinLng}) &&
		b.Contains(Point{Lat: o.MaxLat, Lng: o.MaxLng})
}

// Lerp maps two unit values onto the box.
func (b Bounds) Lerp(u, v float64) Point {
	return Point{
		Lat: b.MinLat + u*(b.MaxLat-b.MinLat),
		Lng: b.MinLng + v*(b.MaxLng-b.MinLng),
	}
}

// Boundary is a region outline used to reject candidates that fall inside
// the bounding box but outside the region itself.
type Boundary struct {
	shape orb.MultiPolygon
}

func NewBoundary(polygons ...orb.Polygon) *Boundary {
	return &Boundary{shape: orb.MultiPolygon(polygons)}
}

// ParseBoundary reads the first polygon or multipolygon feature from a
// GeoJSON feature collection.
func ParseBoundary(data []byte) (*Boundary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundary: %w", err)
	}

	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			return NewBoundary(g), nil
		case orb.MultiPolygon:
			return &Boundary{shape: g}, nil
		}
	}

	return nil, ErrNoPolygon
}

func (b *Boundary) Contains(p Point) bool {
	if b == nil {
		return true
	}

	return planar.MultiPolygonContains(b.shape, p.Orb())
}

// Bound returns the boundary's enclosing box.
func (b *Boundary) Bound() Bounds {
	box := b.shape.Bound()

	return Bounds{
		MinLat: box.Min.Lat(),
		MaxLat: box.Max.Lat(),
		MinLng: box.Min.Lon(),
		MaxLng: box.Max.Lon(),
	}
}
