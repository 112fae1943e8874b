/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package geo holds the coordinate type and the distance and score
// formulas used to grade a guess.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadius is the mean spherical earth radius in meters.
	EarthRadius = 6371e3

	// MaxScore is awarded for a guess on top of the target.
	MaxScore = 5000

	metersPerPoint = 5
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Orb converts p into orb's (lng, lat) ordering.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lng - a.Lng)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Score converts a distance in meters into round points.
func Score(meters float64) int {
	return max(0, MaxScore-int(math.Floor(meters/metersPerPoint)))
}
