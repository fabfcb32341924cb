package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"compass/internal/engine"
	"compass/internal/modules/session"
	"compass/internal/types"
)

// fakeRouter captures handlers so tests decide when and how each completes.
type fakeRouter struct {
	mu       sync.Mutex
	reqs     []engine.RouteRequest
	handlers []engine.RouteHandler
	refuse   error
}

func (f *fakeRouter) CreateRouteAsync(req engine.RouteRequest, done engine.RouteHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse != nil {
		return f.refuse
	}
	f.reqs = append(f.reqs, req)
	f.handlers = append(f.handlers, done)
	return nil
}

func (f *fakeRouter) complete(i int, code engine.ResultCode, r *engine.Route) {
	f.mu.Lock()
	h := f.handlers[i]
	f.mu.Unlock()
	// Engines call back from their own goroutines.
	go h(code, r)
}

type recordingSink struct {
	mu     sync.Mutex
	events []session.Event
}

func (s *recordingSink) Publish(_ string, ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if a, ok := ev.Payload.(session.AlertPayload); ok {
			out = append(out, a.Message)
		}
	}
	return out
}

type memLog struct {
	mu      sync.Mutex
	entries []Entry
	added   chan struct{}
}

func (m *memLog) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	m.added <- struct{}{}
	return nil
}

func (m *memLog) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

type fixture struct {
	ctx    context.Context
	loop   *session.Loop
	state  *session.State
	nav    *engine.RouteNavigator
	router *fakeRouter
	sink   *recordingSink
	coord  *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f := &fixture{
		ctx:    ctx,
		loop:   session.NewLoop(16),
		state:  session.NewState(engine.ProfileCar, true),
		nav:    engine.NewRouteNavigator(),
		router: &fakeRouter{},
		sink:   &recordingSink{},
	}
	go f.loop.Run(ctx)
	notify := session.NewNotifier("s1", f.sink)
	f.coord = NewCoordinator("s1", f.router, f.loop, f.state, f.nav, notify, opts...)
	return f
}

func (f *fixture) request(t *testing.T, start, end types.Point) (*Pending, error) {
	t.Helper()
	var p *Pending
	var err error
	if doErr := f.loop.Do(f.ctx, func() { p, err = f.coord.RequestRoute(start, end, f.state.Profile) }); doErr != nil {
		t.Fatalf("do: %v", doErr)
	}
	return p, err
}

func (f *fixture) on(t *testing.T, fn func()) {
	t.Helper()
	if err := f.loop.Do(f.ctx, fn); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func wait(t *testing.T, p *Pending) Outcome {
	t.Helper()
	select {
	case out := <-p.Done():
		return out
	case <-time.After(2 * time.Second):
		t.Fatalf("request %d never completed", p.RequestID)
		return Outcome{}
	}
}

var (
	home = types.Degrees(51.5, -0.1)
	work = types.Degrees(51.51, -0.09)
)

func route(start, end types.Point, profile engine.Profile) *engine.Route {
	return &engine.Route{
		Profile:   profile,
		Points:    []types.Point{start, end},
		Steps:     []engine.Step{{Instruction: "Head north", Start: start, End: end}},
		DistanceM: 1200,
	}
}

func TestRequestRoute_EndpointsUnset(t *testing.T) {
	f := newFixture(t)
	if _, err := f.request(t, types.Point{}, work); !errors.Is(err, ErrEndpointsUnset) {
		t.Fatalf("expected ErrEndpointsUnset, got %v", err)
	}
	if _, err := f.request(t, home, types.Point{}); !errors.Is(err, ErrEndpointsUnset) {
		t.Fatalf("expected ErrEndpointsUnset, got %v", err)
	}
	if len(f.router.reqs) != 0 {
		t.Errorf("nothing should be submitted, got %d", len(f.router.reqs))
	}
	if len(f.sink.alerts()) != 0 {
		t.Errorf("no message expected, got %v", f.sink.alerts())
	}
}

func TestRequestRoute_SuccessInstallsRoute(t *testing.T) {
	f := newFixture(t)
	f.on(t, func() {
		f.state.Navigating = true
		f.state.ShowLocation = true
	})

	p, err := f.request(t, home, work)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	r := route(home, work, engine.ProfileWalk)
	f.router.complete(0, engine.ResultOK, r)
	out := wait(t, p)

	if out.Stale || out.Code != engine.ResultOK || out.Message != "" || out.Route != r {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	f.on(t, func() {
		if f.nav.Route() != r {
			t.Error("route not installed")
		}
		if f.state.Navigating || f.state.ShowLocation {
			t.Error("navigating and show-location should be cleared")
		}
		if !f.state.NavigateEnabled {
			t.Error("navigate control should be enabled")
		}
		if f.state.Profile != engine.ProfileWalk {
			t.Errorf("profile should follow the route, got %s", f.state.Profile)
		}
		if f.coord.InFlight() {
			t.Error("no request should be in flight")
		}
	})
}

func TestRequestRoute_FailureMessages(t *testing.T) {
	cases := []struct {
		code engine.ResultCode
		want string
	}{
		{engine.ResultNoRoadsNearStart, "no roads near start of route"},
		{engine.ResultNoRoadsNearEnd, "no roads near end of route"},
		{engine.ResultNoRoad, "no roads near one or more route points"},
		{engine.ResultNoRouteConnectivity, "start and end are not connected"},
		{engine.ResultQuotaExceeded, "routing error, code 5"},
		{engine.ResultGeneral, "routing error, code 1"},
	}
	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			f := newFixture(t)
			existing := route(home, work, engine.ProfileCar)
			f.on(t, func() { f.nav.UseRoute(existing, true) })

			p, err := f.request(t, home, work)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			f.router.complete(0, tc.code, nil)
			out := wait(t, p)
			if out.Message != tc.want {
				t.Errorf("expected %q, got %q", tc.want, out.Message)
			}
			alerts := f.sink.alerts()
			if len(alerts) != 1 || alerts[0] != tc.want {
				t.Errorf("expected one alert %q, got %v", tc.want, alerts)
			}
			f.on(t, func() {
				if f.nav.Route() != existing {
					t.Error("failure must leave the active route unchanged")
				}
			})
		})
	}
}

func TestRequestRoute_OKWithoutRouteIsGeneralError(t *testing.T) {
	f := newFixture(t)
	p, _ := f.request(t, home, work)
	f.router.complete(0, engine.ResultOK, nil)
	out := wait(t, p)
	if out.Code != engine.ResultGeneral || out.Message != "routing error, code 1" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestRequestRoute_LatestWins(t *testing.T) {
	f := newFixture(t)
	first, _ := f.request(t, home, work)
	second, _ := f.request(t, work, home)
	if second.RequestID <= first.RequestID {
		t.Fatalf("request ids must increase: %d then %d", first.RequestID, second.RequestID)
	}

	r2 := route(work, home, engine.ProfileCar)
	f.router.complete(1, engine.ResultOK, r2)
	if out := wait(t, second); out.Stale {
		t.Fatalf("latest request should apply: %+v", out)
	}

	f.router.complete(0, engine.ResultOK, route(home, work, engine.ProfileCar))
	if out := wait(t, first); !out.Stale {
		t.Fatalf("earlier request arriving late should be stale: %+v", out)
	}
	f.on(t, func() {
		if f.nav.Route() != r2 {
			t.Error("stale completion replaced the active route")
		}
	})
}

func TestRequestRoute_EarlierCompletionFirstIsStale(t *testing.T) {
	f := newFixture(t)
	first, _ := f.request(t, home, work)
	second, _ := f.request(t, work, home)

	f.router.complete(0, engine.ResultNoRoad, nil)
	if out := wait(t, first); !out.Stale || out.Message != "" {
		t.Fatalf("superseded failure should be silent: %+v", out)
	}
	if alerts := f.sink.alerts(); len(alerts) != 0 {
		t.Errorf("stale completion produced alerts: %v", alerts)
	}
	f.router.complete(1, engine.ResultOK, route(work, home, engine.ProfileCar))
	if out := wait(t, second); out.Stale {
		t.Fatalf("latest should apply: %+v", out)
	}
}

func TestInvalidate_MakesPendingStale(t *testing.T) {
	f := newFixture(t)
	p, _ := f.request(t, home, work)
	f.on(t, func() { f.coord.Invalidate() })
	f.router.complete(0, engine.ResultOK, route(home, work, engine.ProfileCar))
	if out := wait(t, p); !out.Stale {
		t.Fatalf("expected stale outcome, got %+v", out)
	}
	f.on(t, func() {
		if f.nav.RouteCount() != 0 {
			t.Error("invalidated request installed a route")
		}
	})
}

func TestRequestRoute_SubmissionRefused(t *testing.T) {
	f := newFixture(t)
	first, _ := f.request(t, home, work)

	f.router.mu.Lock()
	f.router.refuse = &engine.SubmitError{Code: engine.ResultUnsupportedProfile}
	f.router.mu.Unlock()

	if _, err := f.request(t, home, work); engine.SubmitCode(err) != engine.ResultUnsupportedProfile {
		t.Fatalf("expected unsupported profile refusal, got %v", err)
	}
	alerts := f.sink.alerts()
	if len(alerts) != 1 || alerts[0] != "error in createRouteAsync, code 3" {
		t.Errorf("unexpected alerts: %v", alerts)
	}

	// The refusal does not supersede the request already running.
	f.router.complete(0, engine.ResultOK, route(home, work, engine.ProfileCar))
	if out := wait(t, first); out.Stale {
		t.Fatalf("earlier request should still apply: %+v", out)
	}
}

func TestRequestRoute_DisplayCoordinatesRejected(t *testing.T) {
	f := newFixture(t)
	display := types.Point{X: 120, Y: 300, Coord: types.CoordDisplay}
	_, err := f.request(t, display, work)
	if engine.SubmitCode(err) != engine.ResultInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(f.router.reqs) != 0 {
		t.Error("display coordinates must not reach the engine")
	}
	alerts := f.sink.alerts()
	if len(alerts) != 1 || alerts[0] != "error in createRouteAsync, code 2" {
		t.Errorf("unexpected alerts: %v", alerts)
	}
}

func TestRequestRoute_MapCoordinatesConverted(t *testing.T) {
	f := newFixture(t)
	// Spherical mercator metres for roughly (51.5, -0.1).
	start := types.Point{X: -11131.95, Y: 6710219.08, Coord: types.CoordMap}
	if _, err := f.request(t, start, work); err != nil {
		t.Fatalf("request: %v", err)
	}
	got := f.router.reqs[0].Start
	if got.Coord != types.CoordDegree {
		t.Fatalf("expected degrees, got %s", got.Coord)
	}
	if got.Lat() < 51.49 || got.Lat() > 51.51 || got.Lng() < -0.11 || got.Lng() > -0.09 {
		t.Errorf("unexpected converted point %s", got)
	}
}

func TestRequestRoute_RecordsOutcome(t *testing.T) {
	rl := &memLog{added: make(chan struct{}, 4)}
	f := newFixture(t, WithRouteLog(rl))
	p, _ := f.request(t, home, work)
	f.router.complete(0, engine.ResultOK, route(home, work, engine.ProfileCar))
	wait(t, p)

	select {
	case <-rl.added:
	case <-time.After(2 * time.Second):
		t.Fatal("outcome not recorded")
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e := rl.entries[0]
	if e.SessionID != "s1" || e.RequestID != p.RequestID || e.Code != engine.ResultOK || e.DistanceM != 1200 {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestRequestRoute_AfterInstallHook(t *testing.T) {
	installed := make(chan *engine.Route, 1)
	f := newFixture(t, WithAfterInstall(func(r *engine.Route) { installed <- r }))
	p, _ := f.request(t, home, work)
	r := route(home, work, engine.ProfileCar)
	f.router.complete(0, engine.ResultOK, r)
	wait(t, p)
	select {
	case got := <-installed:
		if got != r {
			t.Error("hook received the wrong route")
		}
	default:
		t.Error("hook did not run before the outcome was delivered")
	}
}

func TestCompletion_AfterSessionClosed(t *testing.T) {
	f := newFixture(t)
	p, _ := f.request(t, home, work)
	f.loop.Close()
	<-f.loop.Done()
	f.router.complete(0, engine.ResultOK, route(home, work, engine.ProfileCar))
	if out := wait(t, p); !out.Stale {
		t.Errorf("completion after close should be stale: %+v", out)
	}
}
