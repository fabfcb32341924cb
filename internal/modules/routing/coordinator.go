// README: Route request coordinator. Submits route requests to the engine and
// applies their completions on the session loop, last request wins.
package routing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"compass/internal/engine"
	"compass/internal/events"
	"compass/internal/modules/session"
	"compass/internal/types"
)

// Poster schedules a function on the session loop.
type Poster interface {
	Post(fn func()) bool
}

// Coordinator owns route submission for one session. RequestRoute, Invalidate
// and RefreshStatus must be called on the session loop.
type Coordinator struct {
	sessionID string
	router    engine.Router
	loop      Poster
	state     *session.State
	nav       engine.Navigator
	notify    *session.Notifier

	routeLog     RouteLog
	publisher    events.Publisher
	afterInstall func(*engine.Route)

	// seq numbers submissions; latest is the id whose completion may still
	// change state, 0 when none may.
	seq    uint64
	latest uint64
}

type Option func(*Coordinator)

// WithRouteLog records every outcome.
func WithRouteLog(l RouteLog) Option {
	return func(c *Coordinator) { c.routeLog = l }
}

// WithPublisher publishes a route.completed event for every outcome.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithAfterInstall runs fn on the loop after a new route is installed.
func WithAfterInstall(fn func(*engine.Route)) Option {
	return func(c *Coordinator) { c.afterInstall = fn }
}

func NewCoordinator(sessionID string, router engine.Router, loop Poster, state *session.State, nav engine.Navigator, notify *session.Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessionID: sessionID,
		router:    router,
		loop:      loop,
		state:     state,
		nav:       nav,
		notify:    notify,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RequestRoute submits a route from start to end. Endpoints at the origin
// sentinel are treated as unset and nothing is submitted. A refused
// submission is reported to the user and does not supersede an earlier
// request that is still running.
func (c *Coordinator) RequestRoute(start, end types.Point, profile engine.Profile) (*Pending, error) {
	if start.IsZero() || end.IsZero() {
		return nil, ErrEndpointsUnset
	}

	c.seq++
	id := c.seq

	from, err := engine.ToDegrees(start)
	if err == nil {
		end, err = engine.ToDegrees(end)
	}
	if err != nil {
		err = &engine.SubmitError{Code: engine.ResultInvalidArgument, Err: err}
		c.refused(id, err)
		return nil, err
	}

	req := engine.RouteRequest{
		Profile:     profile,
		Start:       from,
		End:         end,
		MetricUnits: c.state.MetricUnits,
	}
	p := &Pending{RequestID: id, done: make(chan Outcome, 1)}

	var once sync.Once
	handler := func(code engine.ResultCode, route *engine.Route) {
		once.Do(func() { c.complete(p, req, code, route) })
	}
	if err := c.router.CreateRouteAsync(req, handler); err != nil {
		c.refused(id, err)
		return nil, err
	}

	c.latest = id
	log.Printf("routing: session %s submitted request %d (%s, %s -> %s)", c.sessionID, id, profile, from, end)
	return p, nil
}

func (c *Coordinator) refused(id uint64, err error) {
	code := engine.SubmitCode(err)
	log.Printf("routing: session %s request %d refused: %v", c.sessionID, id, err)
	c.notify.Error(SubmitMessage(code))
}

// complete runs on an engine worker goroutine.
func (c *Coordinator) complete(p *Pending, req engine.RouteRequest, code engine.ResultCode, route *engine.Route) {
	posted := c.loop.Post(func() {
		out := c.apply(p.RequestID, code, route)
		c.record(req, out)
		p.done <- out
	})
	if !posted {
		// Session already closed.
		out := Outcome{RequestID: p.RequestID, Code: code, Stale: true}
		c.record(req, out)
		p.done <- out
	}
}

// apply runs on the session loop.
func (c *Coordinator) apply(id uint64, code engine.ResultCode, route *engine.Route) Outcome {
	out := Outcome{RequestID: id, Code: code}
	if id != c.latest {
		out.Stale = true
		log.Printf("routing: session %s dropped stale completion %d (latest %d)", c.sessionID, id, c.latest)
		return out
	}
	c.latest = 0

	if code != engine.ResultOK || route == nil {
		if code == engine.ResultOK {
			out.Code = engine.ResultGeneral
		}
		out.Message = Message(out.Code)
		c.notify.Error(out.Message)
		return out
	}

	out.Route = route
	c.nav.UseRoute(route, true)
	c.state.Navigating = false
	c.state.ShowLocation = false
	c.RefreshStatus()
	if c.afterInstall != nil {
		c.afterInstall(route)
	}
	return out
}

// Invalidate makes any running request stale. Called when routes are deleted.
func (c *Coordinator) Invalidate() {
	c.latest = 0
}

// InFlight reports whether a submitted request may still change state.
func (c *Coordinator) InFlight() bool { return c.latest != 0 }

// RefreshStatus enables navigation iff a route is installed and re-derives
// endpoints and profile from the installed route.
func (c *Coordinator) RefreshStatus() {
	r := c.nav.Route()
	c.state.NavigateEnabled = r != nil
	if r == nil {
		return
	}
	if len(r.Points) > 0 {
		c.state.RouteStart = r.StartPoint()
		c.state.RouteEnd = r.EndPoint()
	}
	if r.Profile != "" {
		c.state.Profile = r.Profile
	}
}

type completedEvent struct {
	SessionID string  `json:"session_id"`
	RequestID uint64  `json:"request_id"`
	Profile   string  `json:"profile"`
	Code      int     `json:"code"`
	Result    string  `json:"result"`
	Stale     bool    `json:"stale"`
	DistanceM int     `json:"distance_m,omitempty"`
	StartLat  float64 `json:"start_lat"`
	StartLng  float64 `json:"start_lng"`
	EndLat    float64 `json:"end_lat"`
	EndLng    float64 `json:"end_lng"`
}

// record writes the outcome to the route log and the event bus without
// blocking the caller.
func (c *Coordinator) record(req engine.RouteRequest, out Outcome) {
	entry := Entry{
		SessionID: c.sessionID,
		RequestID: out.RequestID,
		Profile:   req.Profile,
		Start:     req.Start,
		End:       req.End,
		Code:      out.Code,
		Stale:     out.Stale,
		CreatedAt: time.Now(),
	}
	if out.Route != nil {
		entry.DistanceM = out.Route.DistanceM
		entry.Duration = out.Route.Duration
	}

	events.PublishAsync(c.publisher, events.KeyRouteCompleted, completedEvent{
		SessionID: entry.SessionID,
		RequestID: entry.RequestID,
		Profile:   string(entry.Profile),
		Code:      int(entry.Code),
		Result:    entry.Code.String(),
		Stale:     entry.Stale,
		DistanceM: entry.DistanceM,
		StartLat:  entry.Start.Lat(),
		StartLng:  entry.Start.Lng(),
		EndLat:    entry.End.Lat(),
		EndLng:    entry.End.Lng(),
	})

	if c.routeLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.routeLog.Record(ctx, entry); err != nil {
			log.Printf("routing: %v", fmt.Errorf("record request %d: %w", entry.RequestID, err))
		}
	}()
}
