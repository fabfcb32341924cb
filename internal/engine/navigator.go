// README: Route-progress navigator producing voice guidance from route steps.
package engine

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"compass/internal/geo"
	"compass/internal/types"
)

const (
	// passRadiusM is how close a fix must come to a manoeuvre point for the
	// manoeuvre to count as done.
	passRadiusM = 25.0
	// arriveRadiusM is how close a fix must come to the route end.
	arriveRadiusM = 30.0
	// Announcement distances scale with speed so drivers hear instructions
	// earlier than walkers.
	announceSlowM = 60.0
	announceFastM = 250.0
	fastSpeedKmh  = 40.0

	arrivalInstruction = "You have arrived at your destination."
)

// Navigator holds the routes installed for one session and the progress
// along the active one. It is not safe for concurrent use; the owning
// session loop serialises access.
type Navigator interface {
	UseRoute(r *Route, replace bool)
	DeleteRoutes()
	RouteCount() int
	Route() *Route
	SetMetricUnits(metric bool)
	// Navigate advances route progress with a fix and returns the voice
	// instruction to speak, or "" when there is nothing to say.
	Navigate(nd *NavigationData) string
}

// RouteNavigator is the step-based Navigator used with engines that return
// turn-by-turn steps.
type RouteNavigator struct {
	routes    []*Route
	metric    bool
	started   bool
	next      int
	announced bool
	arrived   bool
}

func NewRouteNavigator() *RouteNavigator {
	return &RouteNavigator{metric: true}
}

func (n *RouteNavigator) UseRoute(r *Route, replace bool) {
	if r == nil {
		return
	}
	if replace {
		n.routes = n.routes[:0]
	}
	n.routes = append(n.routes, r)
	n.reset()
}

func (n *RouteNavigator) DeleteRoutes() {
	n.routes = nil
	n.reset()
}

func (n *RouteNavigator) RouteCount() int { return len(n.routes) }

func (n *RouteNavigator) Route() *Route {
	if len(n.routes) == 0 {
		return nil
	}
	return n.routes[0]
}

func (n *RouteNavigator) SetMetricUnits(metric bool) { n.metric = metric }

func (n *RouteNavigator) reset() {
	n.started = false
	n.next = 0
	n.announced = false
	n.arrived = false
}

func (n *RouteNavigator) Navigate(nd *NavigationData) string {
	route := n.Route()
	if route == nil || nd == nil || !nd.Validity.Has(ValidPosition) {
		return ""
	}
	pos := types.Degrees(nd.Latitude, nd.Longitude)
	if n.arrived {
		return ""
	}
	steps := route.Steps

	if !n.started {
		n.started = true
		n.next = 1
		if len(steps) > 0 {
			return steps[0].Instruction
		}
	}

	for n.next < len(steps) && geo.DistanceM(pos, steps[n.next].Start) <= passRadiusM {
		n.next++
		n.announced = false
	}

	if n.next >= len(steps) {
		if geo.DistanceM(pos, route.EndPoint()) <= arriveRadiusM {
			n.arrived = true
			return arrivalInstruction
		}
		return ""
	}

	if n.announced {
		return ""
	}
	d := geo.DistanceM(pos, steps[n.next].Start)
	if d > announceDistance(nd) {
		return ""
	}
	n.announced = true
	return fmt.Sprintf("In %s, %s", geo.FormatDistance(d, n.metric, false), lowerFirst(steps[n.next].Instruction))
}

func announceDistance(nd *NavigationData) float64 {
	if nd.Validity.Has(ValidSpeed) && nd.SpeedKmh >= fastSpeedKmh {
		return announceFastM
	}
	return announceSlowM
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
