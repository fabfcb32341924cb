// README: Pushpins, place and address search, and search options.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"compass/internal/engine"
	"compass/internal/modules/mapobject"
	"compass/internal/types"
)

// InsertPin drops a pushpin at the last pressed point, labelled with its
// address.
func (c *Controller) InsertPin(ctx context.Context) (*engine.MapObject, error) {
	var at types.Point
	if err := c.do(ctx, func() { at = c.state.LastPressed }); err != nil {
		return nil, err
	}
	if at.IsZero() {
		return nil, ErrNoPress
	}

	label, err := c.deps.Engine.AddressAt(ctx, at)
	if err != nil {
		log.Printf("controller: session %s address lookup failed: %v", c.id, err)
		label = ""
	}
	if label == "" {
		label = fmt.Sprintf("%.6f, %.6f", at.Lat(), at.Lng())
	}

	obj := engine.MapObject{Layer: mapobject.LayerPushpin, Name: label, Address: label, Point: at}
	id, err := c.deps.Objects.Insert(ctx, c.id, obj)
	if err != nil {
		return nil, fmt.Errorf("insert pushpin: %w", err)
	}
	obj.ID = id

	if err := c.do(ctx, func() { c.state.PushpinID = id }); err != nil {
		return nil, err
	}
	return &obj, nil
}

// DeletePin removes a pushpin.
func (c *Controller) DeletePin(ctx context.Context, id int64) error {
	err := c.deps.Objects.Delete(ctx, c.id, mapobject.LayerPushpin, id)
	if errors.Is(err, mapobject.ErrNotFound) {
		return ErrPinNotFound
	}
	if err != nil {
		return fmt.Errorf("delete pushpin: %w", err)
	}
	return c.do(ctx, func() {
		if c.state.PushpinID == id {
			c.state.PushpinID = 0
		}
	})
}

// Find searches for places by name. Empty text does nothing.
func (c *Controller) Find(ctx context.Context, text string) ([]engine.MapObject, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	param := engine.FindParam{Text: text, MaxItems: c.cfg.FindMaxItems}
	err := c.do(ctx, func() {
		c.state.FindText = text
		param.Match = c.state.MatchMethod()
		if near := c.searchOrigin(); !near.IsZero() {
			param.Near = &near
		}
	})
	if err != nil {
		return nil, err
	}

	found, err := c.deps.Engine.Find(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return found, c.do(ctx, func() {
		c.state.Found = found
		if len(found) == 0 {
			c.notify.Error(fmt.Sprintf("place '%s' not found", text))
		}
	})
}

// FindAddress searches for a structured address. At least one field must be
// set.
func (c *Controller) FindAddress(ctx context.Context, addr engine.Address) ([]engine.MapObject, error) {
	addr.Building = strings.TrimSpace(addr.Building)
	addr.Street = strings.TrimSpace(addr.Street)
	addr.Locality = strings.TrimSpace(addr.Locality)
	if addr.IsEmpty() {
		return nil, fmt.Errorf("%w: building, street or locality is required", ErrBadRequest)
	}

	var fuzzy bool
	if err := c.do(ctx, func() { fuzzy = c.state.Fuzzy }); err != nil {
		return nil, err
	}
	found, err := c.deps.Engine.FindAddress(ctx, addr, c.cfg.FindMaxItems, fuzzy)
	if err != nil {
		return nil, fmt.Errorf("find address: %w", err)
	}
	return found, c.do(ctx, func() {
		c.state.Found = found
		if len(found) == 0 {
			c.notify.Error("address not found")
		}
	})
}

// searchOrigin biases searches towards where the user is or last looked.
func (c *Controller) searchOrigin() types.Point {
	switch {
	case !c.state.LastPosition.IsZero():
		return c.state.LastPosition
	case !c.state.LastPressed.IsZero():
		return c.state.LastPressed
	default:
		return c.state.RouteStart
	}
}

// ChooseFound copies the chosen search result onto the found layer,
// replacing the previously chosen one.
func (c *Controller) ChooseFound(ctx context.Context, index int) (*engine.MapObject, error) {
	var (
		chosen engine.MapObject
		prev   int64
		ok     bool
	)
	err := c.do(ctx, func() {
		if index < 0 || index >= len(c.state.Found) {
			return
		}
		ok = true
		chosen = c.state.Found[index]
		prev = c.state.FoundItemID
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotFound
	}

	if prev != 0 {
		err := c.deps.Objects.Delete(ctx, c.id, mapobject.LayerFound, prev)
		if err != nil && !errors.Is(err, mapobject.ErrNotFound) {
			return nil, fmt.Errorf("replace found item: %w", err)
		}
	}
	chosen.ID = 0
	chosen.Layer = mapobject.LayerFound
	chosen.RadiusM = foundRadiusM
	id, err := c.deps.Objects.Insert(ctx, c.id, chosen)
	if err != nil {
		return nil, fmt.Errorf("insert found item: %w", err)
	}
	chosen.ID = id

	if err := c.do(ctx, func() { c.state.FoundItemID = id }); err != nil {
		return nil, err
	}
	return &chosen, nil
}

// SetOptions applies search and unit toggles.
func (c *Controller) SetOptions(ctx context.Context, opts Options) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() {
		if opts.IgnoreSymbols != nil {
			c.state.IgnoreSymbols = *opts.IgnoreSymbols
		}
		if opts.Fuzzy != nil {
			c.state.Fuzzy = *opts.Fuzzy
		}
		if opts.MetricUnits != nil {
			c.state.MetricUnits = *opts.MetricUnits
			c.nav.SetMetricUnits(*opts.MetricUnits)
		}
		snap = c.snapshot()
		c.publishState()
	})
	return snap, err
}
