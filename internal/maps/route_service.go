package maps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"googlemaps.github.io/maps"

	"compass/internal/engine"
	"compass/internal/geo"
	"compass/internal/types"
)

// RouteService computes routes with the Google Directions API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
	// maxSnapM is how far Google may move an endpoint onto the road network
	// before the endpoint is reported as having no roads nearby.
	maxSnapM float64
}

// NewRouteService creates a RouteService on a shared maps client.
func NewRouteService(client *maps.Client, language, region string, maxSnapM float64) *RouteService {
	return &RouteService{client: client, language: language, region: region, maxSnapM: maxSnapM}
}

// Compute runs one Directions request synchronously and classifies the
// outcome into the engine's result codes.
func (s *RouteService) Compute(ctx context.Context, req engine.RouteRequest) (engine.ResultCode, *engine.Route) {
	mode, avoid, ok := travelMode(req.Profile)
	if !ok {
		return engine.ResultUnsupportedProfile, nil
	}
	units := maps.UnitsImperial
	if req.MetricUnits {
		units = maps.UnitsMetric
	}
	r := &maps.DirectionsRequest{
		Origin:      latLngString(req.Start),
		Destination: latLngString(req.End),
		Mode:        mode,
		Avoid:       avoid,
		Units:       units,
		Language:    s.language,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		code := classifyError(err)
		log.Printf("maps: directions %s -> %s (%s): %v", req.Start, req.End, req.Profile, err)
		return code, nil
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return engine.ResultNoRouteConnectivity, nil
	}

	route, err := toRoute(req.Profile, routes[0])
	if err != nil {
		log.Printf("maps: converting route: %v", err)
		return engine.ResultGeneral, nil
	}
	if code := s.checkSnap(req, routes[0]); code != engine.ResultOK {
		return code, nil
	}
	return engine.ResultOK, route
}

// checkSnap reports endpoints that Google had to move further than maxSnapM.
func (s *RouteService) checkSnap(req engine.RouteRequest, r maps.Route) engine.ResultCode {
	if s.maxSnapM <= 0 {
		return engine.ResultOK
	}
	first := r.Legs[0]
	last := r.Legs[len(r.Legs)-1]
	if geo.DistanceM(req.Start, fromLatLng(first.StartLocation)) > s.maxSnapM {
		return engine.ResultNoRoadsNearStart
	}
	if geo.DistanceM(req.End, fromLatLng(last.EndLocation)) > s.maxSnapM {
		return engine.ResultNoRoadsNearEnd
	}
	return engine.ResultOK
}

func travelMode(p engine.Profile) (maps.Mode, []maps.Avoid, bool) {
	switch p {
	case engine.ProfileCar:
		return maps.TravelModeDriving, nil, true
	case engine.ProfileBike:
		return maps.TravelModeBicycling, nil, true
	case engine.ProfileWalk:
		return maps.TravelModeWalking, nil, true
	case engine.ProfileHike:
		return maps.TravelModeWalking, []maps.Avoid{maps.AvoidHighways}, true
	default:
		return "", nil, false
	}
}

// classifyError maps a Directions failure to a result code. The client
// reports non-OK statuses as "maps: STATUS - message".
func classifyError(err error) engine.ResultCode {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return engine.ResultTransport
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"):
		return engine.ResultNoRouteConnectivity
	case strings.Contains(msg, "NOT_FOUND"):
		return engine.ResultNoRoad
	case strings.Contains(msg, "OVER_QUERY_LIMIT"), strings.Contains(msg, "OVER_DAILY_LIMIT"):
		return engine.ResultQuotaExceeded
	case strings.Contains(msg, "REQUEST_DENIED"):
		return engine.ResultRequestDenied
	case strings.Contains(msg, "INVALID_REQUEST"), strings.Contains(msg, "MAX_WAYPOINTS_EXCEEDED"):
		return engine.ResultInvalidArgument
	case strings.HasPrefix(msg, "maps:"):
		return engine.ResultGeneral
	default:
		return engine.ResultTransport
	}
}

func toRoute(profile engine.Profile, r maps.Route) (*engine.Route, error) {
	route := &engine.Route{Profile: profile, Summary: r.Summary}

	if r.OverviewPolyline.Points != "" {
		pts, err := maps.DecodePolyline(r.OverviewPolyline.Points)
		if err != nil {
			return nil, fmt.Errorf("decode overview polyline: %w", err)
		}
		route.Points = make([]types.Point, len(pts))
		for i, p := range pts {
			route.Points[i] = fromLatLng(p)
		}
	}

	for _, leg := range r.Legs {
		route.DistanceM += leg.Distance.Meters
		route.Duration += leg.Duration
		for _, st := range leg.Steps {
			route.Steps = append(route.Steps, engine.Step{
				Instruction: htmlToText(st.HTMLInstructions),
				Start:       fromLatLng(st.StartLocation),
				End:         fromLatLng(st.EndLocation),
				DistanceM:   st.Distance.Meters,
			})
		}
	}

	if len(route.Points) == 0 && len(r.Legs) > 0 {
		route.Points = []types.Point{
			fromLatLng(r.Legs[0].StartLocation),
			fromLatLng(r.Legs[len(r.Legs)-1].EndLocation),
		}
	}
	return route, nil
}

func latLngString(p types.Point) string {
	return fmt.Sprintf("%.7f,%.7f", p.Lat(), p.Lng())
}

func fromLatLng(ll maps.LatLng) types.Point {
	return types.Degrees(ll.Lat, ll.Lng)
}
