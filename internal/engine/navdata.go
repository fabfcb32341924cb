// README: Navigation input structure consumed by the navigator step function.
package engine

import "time"

// Validity is a bitset recording which NavigationData fields hold values.
type Validity uint8

const (
	ValidTime Validity = 1 << iota
	ValidPosition
	ValidSpeed
	ValidCourse
	ValidHeight
)

func (v Validity) Has(f Validity) bool { return v&f == f }

// NavigationData is one location fix in the form the navigator expects.
type NavigationData struct {
	Validity  Validity
	Time      time.Time
	Latitude  float64
	Longitude float64
	// SpeedKmh is in kilometres per hour.
	SpeedKmh float64
	// Course is degrees clockwise from true north.
	Course float64
	// Height is metres above sea level.
	Height float64
}
