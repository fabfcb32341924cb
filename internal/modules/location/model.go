// README: Recorded track points for a session.
package location

import (
	"time"

	"compass/internal/types"
)

type TrackPoint struct {
	SessionID  string
	Position   types.Point
	RecordedAt time.Time
}
