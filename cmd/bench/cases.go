// README: Benchmark cases for the session API; includes HTTP, WebSocket, DB, Redis, and performance checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"compass/internal/infra"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// sessionID is the session the flow cases share.
	sessionID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// London, roughly 1.1 km apart along a meridian.
var (
	pointA = map[string]any{"lat": 51.5007, "lng": -0.1246}
	pointB = map[string]any{"lat": 51.5107, "lng": -0.1246}
)

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				if err := infra.Migrate(ctx, r.db); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				for _, t := range []string{"schema_migrations", "track_points", "route_log"} {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},

		statusCase("API: health", http.MethodGet, "/health", nil, http.StatusOK),
		statusCase("API: about", http.MethodGet, "/api/about", nil, http.StatusOK),
		{
			Name: "Session: create",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency, err := r.call(ctx, http.MethodPost, "/api/sessions", nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusCreated {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				r.sessionID, _ = body["session_id"].(string)
				return Result{Status: "PASS", Latency: latency, Note: r.sessionID}
			},
		},
		sessionCase("Route: start here without press -> 409", http.MethodPost, "/route/start-here", nil, http.StatusConflict),
		sessionCase("Route: display coordinates -> 422", http.MethodPost, "/route", map[string]any{
			"start": map[string]any{"coord": "display", "x": 120, "y": 340},
			"end":   pointB,
		}, http.StatusUnprocessableEntity),
		{
			Name: "Route: explicit request (wait)",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency, err := r.sessionCall(ctx, http.MethodPost, "/route?wait=true", map[string]any{
					"start": pointA, "end": pointB, "profile": "walk",
				})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusOK || body["status"] != "ok" {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d body=%v", status, body)}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("distance_m=%v", body["distance_m"])}
			},
		},
		sessionCase("Route: geojson", http.MethodGet, "/route/geojson", nil, http.StatusOK),
		sessionCase("Route: history", http.MethodGet, "/route/history", nil, http.StatusOK),
		sessionCase("Navigation: unconfirmed -> 428", http.MethodPost, "/navigation/start", map[string]any{"confirm": false}, http.StatusPreconditionRequired),
		sessionCase("Navigation: confirmed", http.MethodPost, "/navigation/start", map[string]any{"confirm": true}, http.StatusOK),
		sessionCase("Location: fix", http.MethodPost, "/fixes", map[string]any{
			"lat": 51.5007, "lng": -0.1246, "h_accuracy": 8, "speed": 1.4, "course": 0,
		}, http.StatusOK),
		sessionCase("Location: show with route -> 409", http.MethodPost, "/location/show", nil, http.StatusConflict),
		sessionCase("Press: long press", http.MethodPost, "/press", pointA, http.StatusOK),
		sessionCase("Pins: insert", http.MethodPost, "/pins", nil, http.StatusCreated),
		sessionCase("Search: find place", http.MethodPost, "/find", map[string]any{"text": "coffee"}, http.StatusOK),
		{
			Name: "Events: notice over websocket",
			Run:  eventsCase,
		},
		{
			Name: "Concurrency: latest route request wins",
			Run:  latestWins,
		},
		{
			Name: "Perf: location fix throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, "/fixes", map[string]any{
					"lat": 51.5007, "lng": -0.1246, "h_accuracy": 8,
				})
			},
		},
		sessionCase("Route: delete", http.MethodDelete, "/route", nil, http.StatusNoContent),
		sessionCase("Session: close", http.MethodDelete, "", nil, http.StatusNoContent),
		sessionCase("Session: closed -> 404", http.MethodGet, "", nil, http.StatusNotFound),
	}
}

func (r *Runner) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	} else {
		req.Header.Set("X-Compass-User", r.cfg.User)
	}
	return req, nil
}

func (r *Runner) call(ctx context.Context, method, path string, body any) (int, map[string]any, time.Duration, error) {
	req, err := r.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, 0, err
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)

	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, latency, nil
}

func (r *Runner) sessionCall(ctx context.Context, method, path string, body any) (int, map[string]any, time.Duration, error) {
	if r.sessionID == "" {
		return 0, nil, 0, fmt.Errorf("no session")
	}
	return r.call(ctx, method, "/api/sessions/"+r.sessionID+path, body)
}

func statusCase(name, method, path string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.call(ctx, method, path, body)
			return statusResult(status, want, latency, err)
		},
	}
}

func sessionCase(name, method, path string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			if r.sessionID == "" {
				return Result{Status: "SKIP", Note: "no session"}
			}
			status, _, latency, err := r.sessionCall(ctx, method, path, body)
			return statusResult(status, want, latency, err)
		},
	}
}

func statusResult(status, want int, latency time.Duration, err error) Result {
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

// eventsCase attaches to the session stream, reports a provider error and
// waits for the resulting notice.
func eventsCase(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" {
		return Result{Status: "SKIP", Note: "no session"}
	}
	u, err := url.Parse(r.cfg.BaseURL + "/api/sessions/" + r.sessionID + "/events")
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	header := http.Header{}
	if r.cfg.Token != "" {
		q := u.Query()
		q.Set("access_token", r.cfg.Token)
		u.RawQuery = q.Encode()
	} else {
		header.Set("X-Compass-User", r.cfg.User)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	defer conn.Close()

	start := time.Now()
	if status, _, _, err := r.sessionCall(ctx, http.MethodPost, "/fix-errors", map[string]any{"message": "bench"}); err != nil || status != http.StatusNoContent {
		return Result{Status: "FAIL", Note: fmt.Sprintf("fix-errors status=%d err=%v", status, err)}
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if ev.Type == "notice" {
			return Result{Status: "PASS", Latency: time.Since(start)}
		}
	}
}

// latestWins submits overlapping route requests with different ends and
// checks that the installed route ends at the last submitted end.
func latestWins(ctx context.Context, r *Runner) Result {
	if r.sessionID == "" {
		return Result{Status: "SKIP", Note: "no session"}
	}
	n := r.cfg.Concurrency
	if n > 10 {
		n = 10
	}
	ends := map[float64]float64{}
	var lastID float64
	for i := 0; i < n; i++ {
		endLat := 51.5107 + float64(i)*0.01
		status, body, _, err := r.sessionCall(ctx, http.MethodPost, "/route", map[string]any{
			"start": pointA,
			"end":   map[string]any{"lat": endLat, "lng": -0.1246},
		})
		if err != nil || status != http.StatusAccepted {
			return Result{Status: "FAIL", Note: fmt.Sprintf("submit status=%d err=%v", status, err)}
		}
		id, _ := body["request_id"].(float64)
		ends[id] = endLat
		lastID = math.Max(lastID, id)
	}

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		status, snap, _, err := r.sessionCall(ctx, http.MethodGet, "", nil)
		if err != nil || status != http.StatusOK {
			return Result{Status: "FAIL", Note: fmt.Sprintf("snapshot status=%d err=%v", status, err)}
		}
		if snap["route_in_flight"] == false {
			end, _ := snap["route_end"].(map[string]any)
			lat, _ := end["lat"].(float64)
			want := ends[lastID]
			for id, other := range ends {
				if id != lastID && math.Abs(lat-other) < math.Abs(lat-want) {
					return Result{Status: "FAIL", Note: fmt.Sprintf("route ends nearer request %v", id)}
				}
			}
			return Result{Status: "PASS", Note: fmt.Sprintf("requests=%d", n)}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return Result{Status: "FAIL", Note: "route still in flight"}
}

func perfLoad(ctx context.Context, r *Runner, path string, payload any) Result {
	if r.sessionID == "" {
		return Result{Status: "SKIP", Note: "no session"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.sessionCall(ctx, http.MethodPost, path, payload)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
