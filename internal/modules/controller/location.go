// README: Location-driven operations: fixes, navigation, show location and
// tracking.
package controller

import (
	"context"
	"log"

	"compass/internal/events"
	"compass/internal/geo"
	"compass/internal/modules/navigation"
)

// LocationFix feeds provider fixes to the navigation pipeline and returns
// the voice instruction produced, if any.
func (c *Controller) LocationFix(ctx context.Context, locations []navigation.Location) (voice string, err error) {
	err = c.do(ctx, func() { voice = c.pipeline.OnLocationFix(locations) })
	return voice, err
}

// LocationError reports a provider failure to the user.
func (c *Controller) LocationError(ctx context.Context, cause error) error {
	return c.do(ctx, func() { c.pipeline.OnLocationError(cause) })
}

type navigationEvent struct {
	SessionID  string `json:"session_id"`
	Navigating bool   `json:"navigating"`
}

// StartNavigation begins turn-by-turn guidance. The user must confirm the
// testing-only warning first.
func (c *Controller) StartNavigation(ctx context.Context, confirmed bool) (err error) {
	doErr := c.do(ctx, func() {
		if c.nav.RouteCount() == 0 {
			err = ErrNoRoute
			return
		}
		if !confirmed {
			err = ErrConfirmationRequired
			return
		}
		c.state.Navigating = true
		c.state.ShowLocation = false
		c.updateLocationUpdates()
		c.publishState()
	})
	if doErr != nil {
		return doErr
	}
	if err == nil {
		events.PublishAsync(c.deps.Publisher, events.KeyNavigationChange, navigationEvent{SessionID: c.id, Navigating: true})
	}
	return err
}

// StopNavigation ends guidance. The route stays installed.
func (c *Controller) StopNavigation(ctx context.Context) error {
	err := c.do(ctx, func() {
		c.state.Navigating = false
		c.updateLocationUpdates()
		c.publishState()
	})
	if err == nil {
		events.PublishAsync(c.deps.Publisher, events.KeyNavigationChange, navigationEvent{SessionID: c.id, Navigating: false})
	}
	return err
}

// ShowLocation follows the device position on the map. Only allowed while
// no route is installed.
func (c *Controller) ShowLocation(ctx context.Context) (err error) {
	doErr := c.do(ctx, func() {
		if c.nav.RouteCount() != 0 {
			err = ErrRouteActive
			return
		}
		c.state.ShowLocation = true
		c.updateLocationUpdates()
		c.publishState()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) HideLocation(ctx context.Context) error {
	return c.do(ctx, func() {
		c.state.ShowLocation = false
		c.updateLocationUpdates()
		c.publishState()
	})
}

// StartTracking records valid positions into the session's track.
func (c *Controller) StartTracking(ctx context.Context) error {
	return c.do(ctx, func() {
		if c.state.Tracking {
			return
		}
		c.pipeline.ResetTrack()
		c.state.Tracking = true
		c.updateLocationUpdates()
		c.publishState()
	})
}

// StopTracking ends tracking, deletes the track and returns its final
// length as a display string.
func (c *Controller) StopTracking(ctx context.Context) (length string, err error) {
	var wasTracking bool
	err = c.do(ctx, func() {
		wasTracking = c.state.Tracking
		length = geo.FormatDistance(c.state.TrackLengthM, c.state.MetricUnits, true)
		c.state.Tracking = false
		c.pipeline.ResetTrack()
		c.updateLocationUpdates()
		c.publishState()
	})
	if err != nil || !wasTracking {
		return length, err
	}
	if c.deps.Track != nil {
		if err := c.deps.Track.Delete(ctx, c.id); err != nil {
			log.Printf("controller: session %s delete track: %v", c.id, err)
		}
	}
	return length, nil
}
