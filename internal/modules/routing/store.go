// README: Route log store backed by PostgreSQL.
package routing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/engine"
	"compass/internal/types"
)

// RouteLog records completed route requests.
type RouteLog interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO route_log (
            session_id, request_id, profile,
            start_lat, start_lng, end_lat, end_lng,
            result_code, stale, distance_m, duration_s, created_at
        ) VALUES (
            $1, $2, $3,
            $4, $5, $6, $7,
            $8, $9, $10, $11, $12
        )`,
		e.SessionID, int64(e.RequestID), string(e.Profile),
		e.Start.Lat(), e.Start.Lng(), e.End.Lat(), e.End.Lng(),
		int(e.Code), e.Stale, e.DistanceM, int(e.Duration/time.Second), e.CreatedAt,
	)
	return err
}

func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
        SELECT session_id, request_id, profile,
               start_lat, start_lng, end_lat, end_lng,
               result_code, stale, distance_m, duration_s, created_at
        FROM route_log
        WHERE session_id = $1
        ORDER BY created_at DESC, request_id DESC
        LIMIT $2`, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                                  Entry
			requestID                          int64
			profile                            string
			code, durationS                    int
			startLat, startLng, endLat, endLng float64
		)
		if err := rows.Scan(
			&e.SessionID, &requestID, &profile,
			&startLat, &startLng, &endLat, &endLng,
			&code, &e.Stale, &e.DistanceM, &durationS, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.RequestID = uint64(requestID)
		e.Profile = engine.Profile(profile)
		e.Code = engine.ResultCode(code)
		e.Duration = time.Duration(durationS) * time.Second
		e.Start = types.Degrees(startLat, startLng)
		e.End = types.Degrees(endLat, endLng)
		out = append(out, e)
	}
	return out, rows.Err()
}
