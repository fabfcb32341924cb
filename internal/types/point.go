// README: Geographic point value object tagged with its coordinate system.
package types

import "fmt"

// CoordType names the coordinate system a Point is expressed in.
type CoordType int

const (
	// CoordDegree is WGS84 longitude (X) and latitude (Y).
	CoordDegree CoordType = iota
	// CoordMap is spherical web mercator metres.
	CoordMap
	// CoordDisplay is pixels on the client's screen.
	CoordDisplay
)

func (c CoordType) String() string {
	switch c {
	case CoordDegree:
		return "degree"
	case CoordMap:
		return "map"
	case CoordDisplay:
		return "display"
	default:
		return fmt.Sprintf("coord(%d)", int(c))
	}
}

// Point is an (x, y) pair. It always carries its coordinate system.
type Point struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Coord CoordType `json:"coord"`
}

// Degrees builds a degree point from latitude and longitude.
func Degrees(lat, lng float64) Point {
	return Point{X: lng, Y: lat, Coord: CoordDegree}
}

// IsZero reports whether p is the origin sentinel used for "not set".
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

func (p Point) Lat() float64 { return p.Y }
func (p Point) Lng() float64 { return p.X }

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g %s)", p.X, p.Y, p.Coord)
}
