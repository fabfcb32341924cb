package engine

import (
	"errors"

	"compass/internal/geo"
	"compass/internal/types"
)

var ErrUnconvertible = errors.New("coordinates cannot be converted without a display transform")

// ToDegrees converts p into degrees. Display coordinates depend on the
// client's viewport and are rejected.
func ToDegrees(p types.Point) (types.Point, error) {
	switch p.Coord {
	case types.CoordDegree:
		return p, nil
	case types.CoordMap:
		return geo.FromMercator(p), nil
	default:
		return types.Point{}, ErrUnconvertible
	}
}
