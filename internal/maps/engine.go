// README: Google-backed engine; route requests run on an internal worker pool.
package maps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"googlemaps.github.io/maps"

	"compass/internal/engine"
)

// Options configures a GoogleEngine.
type Options struct {
	APIKey    string
	Language  string
	Region    string
	Workers   int
	QueueSize int
	// Timeout bounds one Directions call so a hung request still completes
	// with a transport error.
	Timeout  time.Duration
	MaxSnapM float64
	Cache    RouteCache
}

var errEngineStopped = errors.New("route engine stopped")

type computeFunc func(ctx context.Context, req engine.RouteRequest) (engine.ResultCode, *engine.Route)

type job struct {
	req  engine.RouteRequest
	done engine.RouteHandler
}

// GoogleEngine implements engine.Engine on the Google Maps APIs.
type GoogleEngine struct {
	*PlacesService
	compute computeFunc
	jobs    chan job
	workers int
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
}

// NewGoogleEngine creates the engine. Call Run to start its workers.
func NewGoogleEngine(opts Options) (*GoogleEngine, error) {
	client, err := maps.NewClient(
		maps.WithAPIKey(opts.APIKey),
		maps.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	routes := NewRouteService(client, opts.Language, opts.Region, opts.MaxSnapM)
	compute := routes.Compute
	if opts.Cache != nil {
		compute = cached(opts.Cache, compute)
	}
	return newGoogleEngine(NewPlacesService(client, opts.Language, opts.Region), compute, opts), nil
}

func newGoogleEngine(places *PlacesService, compute computeFunc, opts Options) *GoogleEngine {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 64
	}
	return &GoogleEngine{
		PlacesService: places,
		compute:       compute,
		jobs:          make(chan job, queue),
		workers:       workers,
		timeout:       opts.Timeout,
	}
}

func (e *GoogleEngine) Name() string { return "google-maps" }

// CreateRouteAsync validates req and queues it for a worker.
func (e *GoogleEngine) CreateRouteAsync(req engine.RouteRequest, done engine.RouteHandler) error {
	if _, _, ok := travelMode(req.Profile); !ok {
		return &engine.SubmitError{Code: engine.ResultUnsupportedProfile, Err: fmt.Errorf("profile %q", req.Profile)}
	}
	start, err := engine.ToDegrees(req.Start)
	if err != nil {
		return &engine.SubmitError{Code: engine.ResultInvalidArgument, Err: err}
	}
	end, err := engine.ToDegrees(req.End)
	if err != nil {
		return &engine.SubmitError{Code: engine.ResultInvalidArgument, Err: err}
	}
	req.Start, req.End = start, end

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return &engine.SubmitError{Code: engine.ResultBusy, Err: errEngineStopped}
	}
	select {
	case e.jobs <- job{req: req, done: done}:
		return nil
	default:
		return &engine.SubmitError{Code: engine.ResultBusy, Err: fmt.Errorf("route queue full")}
	}
}

// Run processes queued route requests until ctx is cancelled. Requests still
// queued at shutdown complete with ResultTransport so every accepted request
// gets its callback; submissions after shutdown are refused.
func (e *GoogleEngine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(ctx)
		}()
	}
	wg.Wait()

	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	for {
		select {
		case j := <-e.jobs:
			j.done(engine.ResultTransport, nil)
		default:
			return
		}
	}
}

func (e *GoogleEngine) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			e.process(ctx, j)
		}
	}
}

func (e *GoogleEngine) process(ctx context.Context, j job) {
	reqCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	code, route := e.compute(reqCtx, j.req)
	if code != engine.ResultOK {
		route = nil
	} else if route == nil {
		log.Printf("maps: engine returned ok without a route")
		code = engine.ResultGeneral
	}
	j.done(code, route)
}
