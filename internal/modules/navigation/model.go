// README: Raw location fixes and their conversion to navigator input.
package navigation

import (
	"time"

	"compass/internal/engine"
)

// maxAccuracyM is the worst accuracy, in metres, still accepted as valid.
const maxAccuracyM = 100.0

// Location is one raw fix from the device's location provider. Negative
// accuracies, course and speed mean the provider did not report them.
type Location struct {
	Latitude           float64
	Longitude          float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	Altitude           float64
	// Course is degrees clockwise from true north.
	Course float64
	// Speed is metres per second.
	Speed     float64
	Timestamp time.Time
}

// BuildFix converts a raw location into navigator input. Each field is
// marked valid only when the provider reported a usable value.
func BuildFix(l Location) engine.NavigationData {
	nd := engine.NavigationData{Validity: engine.ValidTime, Time: l.Timestamp}
	if accurate(l.HorizontalAccuracy) {
		nd.Validity |= engine.ValidPosition
		nd.Latitude = l.Latitude
		nd.Longitude = l.Longitude
	}
	if l.Course >= 0 {
		nd.Validity |= engine.ValidCourse
		nd.Course = l.Course
	}
	if l.Speed >= 0 {
		nd.Validity |= engine.ValidSpeed
		nd.SpeedKmh = l.Speed * 3.6
	}
	if accurate(l.VerticalAccuracy) {
		nd.Validity |= engine.ValidHeight
		nd.Height = l.Altitude
	}
	return nd
}

func accurate(m float64) bool {
	return m >= 0 && m <= maxAccuracyM
}

// Report is the wire form of a fix. Omitted optional fields mean the
// provider did not report them. A report without lat and lng carries no
// location and is discarded.
type Report struct {
	Lat                *float64   `json:"lat"`
	Lng                *float64   `json:"lng"`
	HorizontalAccuracy *float64   `json:"h_accuracy,omitempty"`
	VerticalAccuracy   *float64   `json:"v_accuracy,omitempty"`
	Altitude           float64    `json:"altitude,omitempty"`
	Course             *float64   `json:"course,omitempty"`
	Speed              *float64   `json:"speed,omitempty"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
}

// HasPosition reports whether r carries both coordinates.
func (r Report) HasPosition() bool {
	return r.Lat != nil && r.Lng != nil
}

// Location converts r, stamping it with now when it carries no timestamp.
// Callers check HasPosition first.
func (r Report) Location(now time.Time) Location {
	l := Location{
		HorizontalAccuracy: orUnreported(r.HorizontalAccuracy),
		VerticalAccuracy:   orUnreported(r.VerticalAccuracy),
		Altitude:           r.Altitude,
		Course:             orUnreported(r.Course),
		Speed:              orUnreported(r.Speed),
		Timestamp:          now,
	}
	if r.HasPosition() {
		l.Latitude, l.Longitude = *r.Lat, *r.Lng
	}
	if r.Timestamp != nil {
		l.Timestamp = *r.Timestamp
	}
	return l
}

// Locations converts a batch of reports, dropping those without a location.
func Locations(reports []Report, now time.Time) []Location {
	out := make([]Location, 0, len(reports))
	for _, r := range reports {
		if !r.HasPosition() {
			continue
		}
		out = append(out, r.Location(now))
	}
	return out
}

func orUnreported(v *float64) float64 {
	if v == nil {
		return -1
	}
	return *v
}
