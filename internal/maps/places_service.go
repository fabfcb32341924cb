package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"compass/internal/engine"
	"compass/internal/types"
)

// nearRadiusM biases text search around a point when the caller gives one.
const nearRadiusM = 50000

// PlacesService handles place search and geocoding with the Google APIs.
type PlacesService struct {
	client   *maps.Client
	language string
	region   string
}

// NewPlacesService creates a PlacesService on a shared maps client.
func NewPlacesService(client *maps.Client, language, region string) *PlacesService {
	return &PlacesService{client: client, language: language, region: region}
}

// Find runs a text search. Results whose name and address do not contain
// the search text under p.Match are dropped unless p.Match asks for fuzzy
// matching.
func (s *PlacesService) Find(ctx context.Context, p engine.FindParam) ([]engine.MapObject, error) {
	r := &maps.TextSearchRequest{
		Query:    p.Text,
		Language: s.language,
		Region:   s.region,
	}
	if p.Near != nil {
		r.Location = &maps.LatLng{Lat: p.Near.Lat(), Lng: p.Near.Lng()}
		r.Radius = nearRadiusM
	}

	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	var results []engine.MapObject
	for _, result := range resp.Results {
		if !engine.Matches(result.Name+" "+result.FormattedAddress, p.Text, p.Match) {
			continue
		}
		results = append(results, engine.MapObject{
			Name:    result.Name,
			Address: result.FormattedAddress,
			PlaceID: result.PlaceID,
			Point:   fromLatLng(result.Geometry.Location),
		})
		if p.MaxItems > 0 && len(results) >= p.MaxItems {
			break
		}
	}
	return results, nil
}

// FindAddress geocodes a structured address. The locality is passed as a
// component filter so it restricts rather than biases the results. Without
// fuzzy matching, results Google flags as partial matches are dropped.
func (s *PlacesService) FindAddress(ctx context.Context, addr engine.Address, maxItems int, fuzzy bool) ([]engine.MapObject, error) {
	var line []string
	for _, v := range []string{addr.Building, addr.Street} {
		if v = strings.TrimSpace(v); v != "" {
			line = append(line, v)
		}
	}
	r := &maps.GeocodingRequest{
		Address:  strings.Join(line, " "),
		Language: s.language,
		Region:   s.region,
	}
	if l := strings.TrimSpace(addr.Locality); l != "" {
		r.Components = map[maps.Component]string{maps.ComponentLocality: l}
	}

	resp, err := s.client.Geocode(ctx, r)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return nil, nil
		}
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}

	var results []engine.MapObject
	for _, g := range resp {
		if !fuzzy && g.PartialMatch {
			continue
		}
		results = append(results, engine.MapObject{
			Name:    g.FormattedAddress,
			Address: g.FormattedAddress,
			PlaceID: g.PlaceID,
			Point:   fromLatLng(g.Geometry.Location),
		})
		if maxItems > 0 && len(results) >= maxItems {
			break
		}
	}
	return results, nil
}

// AddressAt reverse-geocodes p and returns the best formatted address, or ""
// when Google knows no address there.
func (s *PlacesService) AddressAt(ctx context.Context, p types.Point) (string, error) {
	resp, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat(), Lng: p.Lng()},
		Language: s.language,
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return "", nil
		}
		return "", fmt.Errorf("reverse geocoding api error: %w", err)
	}
	if len(resp) == 0 {
		return "", nil
	}
	return resp[0].FormattedAddress, nil
}
