// README: Layer-tagged map objects owned by a session.
package mapobject

import (
	"context"
	"errors"

	"compass/internal/engine"
	"compass/internal/types"
)

const (
	LayerPushpin = "pushpin"
	LayerFound   = "found"
)

// Layers lists every layer a session can hold objects on.
var Layers = []string{LayerPushpin, LayerFound}

var ErrNotFound = errors.New("map object not found")

// Store keeps map objects per session.
type Store interface {
	// Insert stores obj on obj.Layer and returns its new id.
	Insert(ctx context.Context, sessionID string, obj engine.MapObject) (int64, error)
	// Delete removes object id from layer. It returns ErrNotFound when the
	// object does not exist on that layer.
	Delete(ctx context.Context, sessionID, layer string, id int64) error
	// FindNear returns objects on the given layers within radiusM of p,
	// nearest first.
	FindNear(ctx context.Context, sessionID string, p types.Point, radiusM float64, layers ...string) ([]engine.MapObject, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
