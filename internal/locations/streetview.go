/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/Seednode/streetguess/internal/geo"
)

const StreetViewEndpoint = "https://maps.googleapis.com/maps/api/streetview/metadata"

// StreetView asks the Street View metadata API whether a panorama exists
// near a point. Each call is a single attempt.
type StreetView struct {
	Key      string
	Endpoint string
	Client   *http.Client
	Limiter  *rate.Limiter
}

type metadataResponse struct {
	Status string `json:"status"`
}

func (s *StreetView) Exists(ctx context.Context, p geo.Point) (bool, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = StreetViewEndpoint
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	q := url.Values{}
	q.Set("location", strconv.FormatFloat(p.Lat, 'f', -1, 64)+","+strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("key", s.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("street view metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("street view metadata: unexpected status %s", resp.Status)
	}

	var body metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode street view metadata: %w", err)
	}

	return body.Status == "OK", nil
}
