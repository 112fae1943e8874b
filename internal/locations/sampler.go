/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package locations

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Seednode/streetguess/internal/geo"
)

const DefaultMaxAttempts = 50

// Oracle reports whether street-level imagery exists at a point.
type Oracle interface {
	Exists(ctx context.Context, p geo.Point) (bool, error)
}

// Sampler draws random points inside Bounds until one lies within Boundary
// and is confirmed by Oracle. After MaxAttempts draws it returns Fallback.
type Sampler struct {
	MaxAttempts int
	Fallback    geo.Point
	Bounds      geo.Bounds
	Boundary    *geo.Boundary
	Oracle      Oracle
	Rand        Source
	Log         zerolog.Logger
}

func (s *Sampler) Sample(ctx context.Context) geo.Point {
	src := s.Rand
	if src == nil {
		src = DefaultSource()
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			break
		}

		candidate := s.Bounds.Lerp(src.Float64(), src.Float64())
		if !s.Boundary.Contains(candidate) {
			continue
		}

		if s.Oracle == nil {
			return candidate
		}

		ok, err := s.Oracle.Exists(ctx, candidate)
		if err != nil {
			s.Log.Debug().Err(err).
				Float64("lat", candidate.Lat).
				Float64("lng", candidate.Lng).
				Msg("imagery lookup failed")

			continue
		}
		if ok {
			return candidate
		}
	}

	s.Log.Warn().Int("attempts", attempts).Msg("no confirmed location, using fallback")

	return s.Fallback
}
