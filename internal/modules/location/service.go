// README: Track recorder. Buffers high-frequency track points and flushes
// them to the store in batches from a single goroutine.
package location

import (
	"context"
	"errors"
	"log"
	"time"

	"compass/internal/types"
)

var ErrRecorderStopped = errors.New("track recorder stopped")

// TrackStore persists track points.
type TrackStore interface {
	AppendBatch(ctx context.Context, points []TrackPoint) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type deleteOp struct {
	sessionID string
	reply     chan error
}

// op is either a point or a delete request. Both travel on one channel so a
// delete always follows the points appended before it.
type op struct {
	point *TrackPoint
	del   *deleteOp
}

type Recorder struct {
	store     TrackStore
	ops       chan op
	batchSize int
	interval  time.Duration
	stopped   chan struct{}
}

func NewRecorder(store TrackStore, buffer, batchSize int, interval time.Duration) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Recorder{
		store:     store,
		ops:       make(chan op, buffer),
		batchSize: batchSize,
		interval:  interval,
		stopped:   make(chan struct{}),
	}
}

// Append queues a point. It never blocks and reports false when the point
// was dropped.
func (r *Recorder) Append(sessionID string, p types.Point, at time.Time) bool {
	tp := TrackPoint{SessionID: sessionID, Position: p, RecordedAt: at}
	select {
	case <-r.stopped:
		return false
	default:
	}
	select {
	case r.ops <- op{point: &tp}:
		return true
	default:
		log.Printf("location: track buffer full, dropped point for session %s", sessionID)
		return false
	}
}

// Delete removes a session's track after flushing its queued points.
func (r *Recorder) Delete(ctx context.Context, sessionID string) error {
	d := &deleteOp{sessionID: sessionID, reply: make(chan error, 1)}
	select {
	case r.ops <- op{del: d}:
	case <-r.stopped:
		return ErrRecorderStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-d.reply:
		return err
	case <-r.stopped:
		return ErrRecorderStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run flushes batches until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]TrackPoint, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.store.AppendBatch(ctx, batch); err != nil {
			log.Printf("location: flush %d points: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for {
				select {
				case o := <-r.ops:
					if o.point != nil {
						batch = append(batch, *o.point)
					} else {
						flush(drainCtx)
						o.del.reply <- r.store.DeleteSession(drainCtx, o.del.sessionID)
					}
					continue
				default:
				}
				break
			}
			flush(drainCtx)
			cancel()
			return
		case <-ticker.C:
			flush(ctx)
		case o := <-r.ops:
			if o.point != nil {
				batch = append(batch, *o.point)
				if len(batch) >= r.batchSize {
					flush(ctx)
				}
				continue
			}
			flush(ctx)
			o.del.reply <- r.store.DeleteSession(ctx, o.del.sessionID)
		}
	}
}
