// README: Route request outcomes and the route log entry shape.
package routing

import (
	"errors"
	"fmt"
	"time"

	"compass/internal/engine"
	"compass/internal/types"
)

var (
	ErrEndpointsUnset = errors.New("route start and end must both be set")
	ErrNoRoute        = errors.New("no route")
)

// Outcome is what became of one submitted route request.
type Outcome struct {
	RequestID uint64
	Code      engine.ResultCode
	// Stale is set when a newer request, a route deletion or a session close
	// superseded this one. A stale outcome changed nothing.
	Stale bool
	// Message is the error shown to the user, empty on success.
	Message string
	Route   *engine.Route
}

// Pending is the handle for a submitted request.
type Pending struct {
	RequestID uint64
	done      chan Outcome
}

// Done yields the Outcome once the completion has been applied or discarded.
func (p *Pending) Done() <-chan Outcome { return p.done }

// Message maps a completion code to the text shown to the user.
func Message(code engine.ResultCode) string {
	switch code {
	case engine.ResultOK:
		return ""
	case engine.ResultNoRoadsNearStart:
		return "no roads near start of route"
	case engine.ResultNoRoadsNearEnd:
		return "no roads near end of route"
	case engine.ResultNoRoad:
		return "no roads near one or more route points"
	case engine.ResultNoRouteConnectivity:
		return "start and end are not connected"
	default:
		return fmt.Sprintf("routing error, code %d", int(code))
	}
}

// SubmitMessage is shown when the engine refuses a request up front.
func SubmitMessage(code engine.ResultCode) string {
	return fmt.Sprintf("error in createRouteAsync, code %d", int(code))
}

// Entry is one row of the route log.
type Entry struct {
	SessionID string
	RequestID uint64
	Profile   engine.Profile
	Start     types.Point
	End       types.Point
	Code      engine.ResultCode
	Stale     bool
	DistanceM int
	Duration  time.Duration
	CreatedAt time.Time
}
