// README: Track store backed by PostgreSQL.
package location

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// AppendBatch bulk-inserts points with COPY.
func (s *Store) AppendBatch(ctx context.Context, points []TrackPoint) error {
	if len(points) == 0 {
		return nil
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"track_points"},
		[]string{"session_id", "lat", "lng", "recorded_at"},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			p := points[i]
			return []any{p.SessionID, p.Position.Lat(), p.Position.Lng(), p.RecordedAt}, nil
		}),
	)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM track_points WHERE session_id = $1`, sessionID)
	return err
}

func (s *Store) Points(ctx context.Context, sessionID string) ([]TrackPoint, error) {
	rows, err := s.db.Query(ctx, `
        SELECT lat, lng, recorded_at
        FROM track_points
        WHERE session_id = $1
        ORDER BY recorded_at, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackPoint
	for rows.Next() {
		var lat, lng float64
		tp := TrackPoint{SessionID: sessionID}
		if err := rows.Scan(&lat, &lng, &tp.RecordedAt); err != nil {
			return nil, err
		}
		tp.Position = types.Degrees(lat, lng)
		out = append(out, tp)
	}
	return out, rows.Err()
}
