// Package engine defines the contract with the external mapping and routing
// engine. Route computation, place search and address lookup happen behind
// these interfaces; callers only marshal requests in and results out.
package engine

import (
	"context"
	"time"

	"compass/internal/types"
)

// RouteHandler receives the single completion of an asynchronous route
// request. Engines call it from their own worker goroutines.
type RouteHandler func(code ResultCode, route *Route)

// RouteRequest is an ordered pair of endpoints plus a travel profile.
type RouteRequest struct {
	Profile Profile
	Start   types.Point
	End     types.Point
	// MetricUnits selects the units the engine uses in guidance text.
	MetricUnits bool
}

// Router computes routes asynchronously.
type Router interface {
	// CreateRouteAsync submits req and returns immediately. A nil error means
	// done will be called exactly once. A non-nil error is a *SubmitError and
	// done is never called.
	CreateRouteAsync(req RouteRequest, done RouteHandler) error
}

// Finder searches the engine's map data.
type Finder interface {
	Find(ctx context.Context, p FindParam) ([]MapObject, error)
	FindAddress(ctx context.Context, addr Address, maxItems int, fuzzy bool) ([]MapObject, error)
	// AddressAt reverse-geocodes a degree point into a one-line address.
	AddressAt(ctx context.Context, p types.Point) (string, error)
}

// Engine is the full engine surface used by session controllers.
type Engine interface {
	Router
	Finder
	Name() string
}

// Route is the engine's handle for a computed route.
type Route struct {
	Profile   Profile
	Points    []types.Point
	Steps     []Step
	DistanceM int
	Duration  time.Duration
	Summary   string
}

// Step is one manoeuvre of a route.
type Step struct {
	Instruction string
	Start       types.Point
	End         types.Point
	DistanceM   int
}

// StartPoint returns the first point of the route geometry.
func (r *Route) StartPoint() types.Point {
	if r == nil || len(r.Points) == 0 {
		return types.Point{}
	}
	return r.Points[0]
}

// EndPoint returns the last point of the route geometry.
func (r *Route) EndPoint() types.Point {
	if r == nil || len(r.Points) == 0 {
		return types.Point{}
	}
	return r.Points[len(r.Points)-1]
}

// MapObject is a search result or a user-inserted object on a named layer.
type MapObject struct {
	ID      int64       `json:"id"`
	Layer   string      `json:"layer,omitempty"`
	Name    string      `json:"name"`
	Address string      `json:"address,omitempty"`
	PlaceID string      `json:"place_id,omitempty"`
	Point   types.Point `json:"point"`
	// RadiusM draws the object as a circle when positive.
	RadiusM float64 `json:"radius_m,omitempty"`
}

// Address is a structured postal address used for address search.
type Address struct {
	Building string
	Street   string
	Locality string
}

// IsEmpty reports whether no address field is set.
func (a Address) IsEmpty() bool {
	return a.Building == "" && a.Street == "" && a.Locality == ""
}

// FindParam describes a free-text place search.
type FindParam struct {
	Text     string
	Match    StringMatch
	MaxItems int
	// Near biases results towards a degree point when set.
	Near *types.Point
}
