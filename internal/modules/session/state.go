// README: Per-session controller state, owned by the session Loop.
package session

import (
	"time"

	"compass/internal/engine"
	"compass/internal/types"
)

// State is everything the controller remembers between requests. Only
// functions running on the session's Loop may touch it.
type State struct {
	RouteStart  types.Point
	RouteEnd    types.Point
	LastPressed types.Point
	Profile     engine.Profile

	Navigating       bool
	ShowLocation     bool
	Tracking         bool
	NavigateEnabled  bool
	UpdatingLocation bool
	MetricUnits      bool

	PushpinID     int64
	FindText      string
	IgnoreSymbols bool
	Fuzzy         bool
	Found         []engine.MapObject
	FoundItemID   int64

	LastPosition   types.Point
	LastFixAt      time.Time
	TrackLengthM   float64
	LastTrackPoint types.Point
}

func NewState(profile engine.Profile, metric bool) *State {
	return &State{
		Profile:       profile,
		MetricUnits:   metric,
		IgnoreSymbols: true,
	}
}

// MatchMethod returns the string match flags for place search.
func (s *State) MatchMethod() engine.StringMatch {
	m := engine.DefaultMatch
	if s.IgnoreSymbols {
		m |= engine.MatchIgnoreSymbols
	}
	if s.Fuzzy {
		m |= engine.MatchFuzzy
	}
	return m
}

// WantsLocationUpdates reports whether the device should be streaming fixes.
func (s *State) WantsLocationUpdates() bool {
	return s.Navigating || s.ShowLocation || s.Tracking
}
