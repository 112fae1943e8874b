/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package locations picks the target coordinate for each round, either from
// a curated set of hotspots or by rejection sampling inside the city
// boundary.
package locations

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Seednode/streetguess/internal/geo"
)

type Mode string

const (
	ModeRandom  Mode = "random"
	ModeHotspot Mode = "hotspot"
)

func (m Mode) Valid() bool {
	return m == ModeRandom || m == ModeHotspot
}

// CityBounds encloses the playable region.
var CityBounds = geo.Bounds{
	MinLat: 51.4808012,
	MaxLat: 51.6315932,
	MinLng: 6.9874995,
	MaxLng: 7.152337,
}

//go:embed data/hotspots.json
var hotspotsJSON []byte

//go:embed data/boundary.geojson
var boundaryJSON []byte

var (
	ErrNoHotspots      = errors.New("hotspot list is empty")
	ErrBoundaryOutside = errors.New("boundary extends outside the sampling box")
)

type Hotspot struct {
	Name string `json:"name"`
	geo.Point
}

// Source is the randomness used for sampling and shuffling.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

type globalSource struct{}

func (globalSource) Float64() float64                   { return rand.Float64() }
func (globalSource) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultSource draws from the goroutine-safe math/rand/v2 top-level functions.
func DefaultSource() Source {
	return globalSource{}
}

// LoadHotspots returns the embedded curated locations in file order.
func LoadHotspots() ([]Hotspot, error) {
	var spots []Hotspot
	if err := json.Unmarshal(hotspotsJSON, &spots); err != nil {
		return nil, fmt.Errorf("parse hotspots: %w", err)
	}
	if len(spots) == 0 {
		return nil, ErrNoHotspots
	}

	return spots, nil
}

// LoadBoundary returns the embedded city outline.
func LoadBoundary() (*geo.Boundary, error) {
	return parseBoundary(boundaryJSON, CityBounds)
}

// parseBoundary rejects outlines reaching past box, since the sampler only
// draws inside box and such parts could never be chosen.
func parseBoundary(data []byte, box geo.Bounds) (*geo.Boundary, error) {
	b, err := geo.ParseBoundary(data)
	if err != nil {
		return nil, err
	}

	if outline := b.Bound(); !box.Covers(outline) {
		return nil, fmt.Errorf("%w: outline %+v, box %+v", ErrBoundaryOutside, outline, box)
	}

	return b, nil
}

// Provider selects the next round's target.
type Provider interface {
	Locate(ctx context.Context, mode Mode) geo.Point
}

// Selector dispatches to the hotspot shuffle or the random sampler by mode.
type Selector struct {
	hotspots []Hotspot
	sampler  *Sampler
	rand     Source
}

func NewSelector(hotspots []Hotspot, sampler *Sampler, src Source) (*Selector, error) {
	if len(hotspots) == 0 {
		return nil, ErrNoHotspots
	}
	if src == nil {
		src = DefaultSource()
	}

	return &Selector{
		hotspots: hotspots,
		sampler:  sampler,
		rand:     src,
	}, nil
}

// Locate never fails: the random sampler falls back to a hotspot.
func (s *Selector) Locate(ctx context.Context, mode Mode) geo.Point {
	if mode == ModeRandom && s.sampler != nil {
		return s.sampler.Sample(ctx)
	}

	return s.Shuffled()[0].Point
}

// Shuffled returns a fresh uniform permutation of the hotspots. Each call is
// independent, so consecutive rounds may repeat a location.
func (s *Selector) Shuffled() []Hotspot {
	spots := make([]Hotspot, len(s.hotspots))
	copy(spots, s.hotspots)

	s.rand.Shuffle(len(spots), func(i, j int) {
		spots[i], spots[j] = spots[j], spots[i]
	})

	return spots
}
