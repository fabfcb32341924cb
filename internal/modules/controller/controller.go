// README: Per-session controller. Every operation reads or changes session
// state on the session loop; network calls happen between loop visits.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"compass/internal/engine"
	"compass/internal/events"
	"compass/internal/modules/mapobject"
	"compass/internal/modules/navigation"
	"compass/internal/modules/routing"
	"compass/internal/modules/session"
	"compass/internal/types"
)

// TrackRecorder stores tracked positions.
type TrackRecorder interface {
	Append(sessionID string, p types.Point, at time.Time) bool
	Delete(ctx context.Context, sessionID string) error
}

// Deps are the shared services every session controller uses.
type Deps struct {
	Engine    engine.Engine
	Objects   mapobject.Store
	Track     TrackRecorder
	RouteLog  routing.RouteLog
	Publisher events.Publisher
	Sink      session.Sink
	// Speaker defaults to speaking over the session event stream.
	Speaker navigation.Speaker
}

type Controller struct {
	id    string
	owner string
	deps  Deps
	cfg   Config

	loop     *session.Loop
	state    *session.State
	nav      *engine.RouteNavigator
	notify   *session.Notifier
	coord    *routing.Coordinator
	pipeline *navigation.Pipeline
	speech   *navigation.SpeechQueue
	cancel   context.CancelFunc
}

func newController(ctx context.Context, id, owner string, deps Deps, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	if deps.Speaker == nil {
		deps.Speaker = navigation.SinkSpeaker{Sink: deps.Sink}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}

	c := &Controller{
		id:     id,
		owner:  owner,
		deps:   deps,
		cfg:    cfg,
		loop:   session.NewLoop(cfg.LoopBuffer),
		state:  session.NewState(cfg.DefaultProfile, cfg.MetricUnits),
		nav:    engine.NewRouteNavigator(),
		notify: session.NewNotifier(id, deps.Sink),
		speech: navigation.NewSpeechQueue(deps.Speaker, cfg.SpeechQueueSize),
		cancel: cancel,
	}
	c.nav.SetMetricUnits(cfg.MetricUnits)

	opts := []routing.Option{
		routing.WithPublisher(deps.Publisher),
		routing.WithAfterInstall(func(*engine.Route) {
			c.updateLocationUpdates()
			c.publishState()
		}),
	}
	if deps.RouteLog != nil {
		opts = append(opts, routing.WithRouteLog(deps.RouteLog))
	}
	c.coord = routing.NewCoordinator(id, deps.Engine, c.loop, c.state, c.nav, c.notify, opts...)

	var track navigation.TrackAppender
	if deps.Track != nil {
		track = deps.Track
	}
	c.pipeline = navigation.NewPipeline(id, c.state, c.nav, c.speech, c.notify, track)

	go c.loop.Run(ctx)
	go c.speech.Run(ctx)
	return c
}

func (c *Controller) ID() string    { return c.id }
func (c *Controller) Owner() string { return c.owner }

// do runs fn on the session loop.
func (c *Controller) do(ctx context.Context, fn func()) error {
	err := c.loop.Do(ctx, fn)
	if errors.Is(err, session.ErrClosed) {
		return ErrNotFound
	}
	return err
}

func (c *Controller) stop() {
	c.loop.Close()
	c.cancel()
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() { snap = c.snapshot() })
	return snap, err
}

func (c *Controller) snapshot() Snapshot {
	return snapshotOf(c.id, c.state, c.nav.Route(), c.coord.InFlight())
}

func (c *Controller) publishState() {
	c.notify.Emit(session.EventState, c.snapshot())
}

// updateLocationUpdates asks the device to stream fixes iff something needs
// them. Runs on the loop.
func (c *Controller) updateLocationUpdates() {
	want := c.state.WantsLocationUpdates()
	if want == c.state.UpdatingLocation {
		return
	}
	c.state.UpdatingLocation = want
	c.notify.LocationUpdates(want)
}

// requestRoute submits the current endpoints. Unset endpoints are not an
// error here: the route is requested once both ends are known.
func (c *Controller) requestRoute() (*routing.Pending, error) {
	p, err := c.coord.RequestRoute(c.state.RouteStart, c.state.RouteEnd, c.state.Profile)
	if errors.Is(err, routing.ErrEndpointsUnset) {
		return nil, nil
	}
	return p, err
}

// Press records a long press and reports what lies under it.
func (c *Controller) Press(ctx context.Context, p types.Point, radiusM float64) (*PressResult, error) {
	deg, err := engine.ToDegrees(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if deg.IsZero() {
		return nil, fmt.Errorf("%w: point not set", ErrBadRequest)
	}
	if radiusM <= 0 {
		radiusM = c.cfg.PressRadiusM
	}

	objs, err := c.deps.Objects.FindNear(ctx, c.id, deg, radiusM)
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	var pin int64
	for _, o := range objs {
		if o.Layer == mapobject.LayerPushpin {
			pin = o.ID
			break
		}
	}

	err = c.do(ctx, func() {
		c.state.LastPressed = deg
		c.state.PushpinID = pin
	})
	if err != nil {
		return nil, err
	}
	if objs == nil {
		objs = []engine.MapObject{}
	}
	return &PressResult{
		Point:     LatLng{Lat: deg.Lat(), Lng: deg.Lng()},
		MapPoint:  mapXY(deg),
		Objects:   objs,
		PushpinID: pin,
		Menu:      pressMenu(pin),
	}, nil
}

// StartHere makes the last pressed point the route start.
func (c *Controller) StartHere(ctx context.Context) (*routing.Pending, error) {
	return c.endpointFromPress(ctx, true)
}

// EndHere makes the last pressed point the route end.
func (c *Controller) EndHere(ctx context.Context) (*routing.Pending, error) {
	return c.endpointFromPress(ctx, false)
}

func (c *Controller) endpointFromPress(ctx context.Context, start bool) (p *routing.Pending, err error) {
	doErr := c.do(ctx, func() {
		if c.state.LastPressed.IsZero() {
			err = ErrNoPress
			return
		}
		if start {
			c.state.RouteStart = c.state.LastPressed
		} else {
			c.state.RouteEnd = c.state.LastPressed
		}
		p, err = c.requestRoute()
	})
	if doErr != nil {
		return nil, doErr
	}
	return p, err
}

// Route requests a route between explicit endpoints. An empty profile keeps
// the session's profile.
func (c *Controller) Route(ctx context.Context, start, end types.Point, profile engine.Profile) (p *routing.Pending, err error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, routing.ErrEndpointsUnset)
	}
	doErr := c.do(ctx, func() {
		c.state.RouteStart = start
		c.state.RouteEnd = end
		if profile != "" {
			c.state.Profile = profile
		}
		p, err = c.coord.RequestRoute(start, end, c.state.Profile)
	})
	if doErr != nil {
		return nil, doErr
	}
	return p, err
}

// Reverse swaps the endpoints of the current route and recomputes it.
func (c *Controller) Reverse(ctx context.Context) (p *routing.Pending, err error) {
	doErr := c.do(ctx, func() {
		if c.nav.RouteCount() == 0 {
			err = ErrNoRoute
			return
		}
		c.state.RouteStart, c.state.RouteEnd = c.state.RouteEnd, c.state.RouteStart
		p, err = c.requestRoute()
	})
	if doErr != nil {
		return nil, doErr
	}
	return p, err
}

// DeleteRoute stops navigation and removes the route. A request still in
// flight can no longer install its route.
func (c *Controller) DeleteRoute(ctx context.Context) error {
	return c.do(ctx, func() {
		c.state.Navigating = false
		c.nav.DeleteRoutes()
		c.coord.Invalidate()
		c.coord.RefreshStatus()
		c.updateLocationUpdates()
		c.publishState()
	})
}

// SetProfile changes the route profile and recomputes the route when the
// profile actually changed.
func (c *Controller) SetProfile(ctx context.Context, profile engine.Profile) (p *routing.Pending, err error) {
	doErr := c.do(ctx, func() {
		if profile == c.state.Profile {
			return
		}
		c.state.Profile = profile
		p, err = c.requestRoute()
		c.publishState()
	})
	if doErr != nil {
		return nil, doErr
	}
	return p, err
}

// RouteHistory returns recent route requests for the session.
func (c *Controller) RouteHistory(ctx context.Context) ([]routing.Entry, error) {
	if c.deps.RouteLog == nil {
		return []routing.Entry{}, nil
	}
	entries, err := c.deps.RouteLog.Recent(ctx, c.id, c.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("route history: %w", err)
	}
	return entries, nil
}

// ActiveRoute returns the installed route, or ErrNoRoute.
func (c *Controller) ActiveRoute(ctx context.Context) (*engine.Route, error) {
	var r *engine.Route
	if err := c.do(ctx, func() { r = c.nav.Route() }); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoRoute
	}
	return r, nil
}

func (c *Controller) close(ctx context.Context) {
	c.stop()
	if err := c.deps.Objects.DeleteSession(ctx, c.id); err != nil {
		log.Printf("controller: session %s delete objects: %v", c.id, err)
	}
	if c.deps.Track != nil {
		if err := c.deps.Track.Delete(ctx, c.id); err != nil {
			log.Printf("controller: session %s delete track: %v", c.id, err)
		}
	}
}
