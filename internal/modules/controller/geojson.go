// README: GeoJSON export of the active route.
package controller

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"compass/internal/engine"
	"compass/internal/types"
)

// RouteGeoJSON returns the active route as a feature collection: the route
// line followed by one point feature per manoeuvre.
func (c *Controller) RouteGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	r, err := c.ActiveRoute(ctx)
	if err != nil {
		return nil, err
	}
	return RouteFeatures(r), nil
}

func RouteFeatures(r *engine.Route) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(r.Points))
	for _, p := range r.Points {
		line = append(line, toOrb(p))
	}
	f := geojson.NewFeature(line)
	f.Properties["kind"] = "route"
	f.Properties["profile"] = string(r.Profile)
	f.Properties["distance_m"] = r.DistanceM
	f.Properties["duration_s"] = int64(r.Duration.Seconds())
	if r.Summary != "" {
		f.Properties["summary"] = r.Summary
	}
	fc.Append(f)

	for i, s := range r.Steps {
		sf := geojson.NewFeature(toOrb(s.Start))
		sf.Properties["kind"] = "step"
		sf.Properties["index"] = i
		sf.Properties["instruction"] = s.Instruction
		sf.Properties["distance_m"] = s.DistanceM
		fc.Append(sf)
	}
	return fc
}

func toOrb(p types.Point) orb.Point {
	return orb.Point{p.Lng(), p.Lat()}
}
