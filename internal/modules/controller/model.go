// README: Controller errors, configuration and response shapes.
package controller

import (
	"errors"
	"time"

	"compass/internal/engine"
	"compass/internal/geo"
	"compass/internal/modules/session"
	"compass/internal/types"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrForbidden    = errors.New("session belongs to another user")
	ErrBadRequest   = errors.New("bad request")
	ErrNoRoute      = errors.New("no route")
	ErrNoPress      = errors.New("no point has been pressed")
	ErrRouteActive  = errors.New("location cannot be shown while a route is active")
	ErrPinNotFound  = errors.New("pushpin not found")
	ErrItemNotFound = errors.New("found item not found")
	// ErrConfirmationRequired carries the warning the user must accept
	// before navigation starts.
	ErrConfirmationRequired = errors.New("NAVIGATION IS FOR TESTING ONLY AND NOT INTENDED FOR ACTUAL ROUTE GUIDANCE")
)

// Menu choices offered after a long press.
const (
	MenuInsertPin = "Insert pin"
	MenuDeletePin = "Delete pin"
	MenuStartHere = "Start here"
	MenuEndHere   = "End here"
)

const foundRadiusM = 20.0

type Config struct {
	DefaultProfile  engine.Profile
	MetricUnits     bool
	PressRadiusM    float64
	FindMaxItems    int
	LoopBuffer      int
	SpeechQueueSize int
	HistoryLimit    int
}

func (c Config) withDefaults() Config {
	if c.DefaultProfile == "" {
		c.DefaultProfile = engine.ProfileCar
	}
	if c.PressRadiusM <= 0 {
		c.PressRadiusM = 25
	}
	if c.FindMaxItems <= 0 {
		c.FindMaxItems = 20
	}
	if c.LoopBuffer <= 0 {
		c.LoopBuffer = 64
	}
	if c.SpeechQueueSize <= 0 {
		c.SpeechQueueSize = 16
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	return c
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapXY is a position in web mercator metres.
type MapXY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func mapXY(p types.Point) MapXY {
	m := geo.ToMercator(p)
	return MapXY{X: m.X, Y: m.Y}
}

func latLng(p types.Point) *LatLng {
	if p.IsZero() {
		return nil
	}
	return &LatLng{Lat: p.Lat(), Lng: p.Lng()}
}

type RouteSummary struct {
	Profile   string `json:"profile"`
	DistanceM int    `json:"distance_m"`
	Distance  string `json:"distance"`
	DurationS int64  `json:"duration_s"`
	Summary   string `json:"summary,omitempty"`
	Steps     int    `json:"steps"`
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	SessionID        string        `json:"session_id"`
	Profile          string        `json:"profile"`
	RouteStart       *LatLng       `json:"route_start,omitempty"`
	RouteEnd         *LatLng       `json:"route_end,omitempty"`
	LastPressed      *LatLng       `json:"last_pressed,omitempty"`
	LastPosition     *LatLng       `json:"last_position,omitempty"`
	Route            *RouteSummary `json:"route,omitempty"`
	RouteInFlight    bool          `json:"route_in_flight"`
	NavigateEnabled  bool          `json:"navigate_enabled"`
	Navigating       bool          `json:"navigating"`
	ShowLocation     bool          `json:"show_location"`
	Tracking         bool          `json:"tracking"`
	TrackLength      string        `json:"track_length,omitempty"`
	UpdatingLocation bool          `json:"updating_location"`
	MetricUnits      bool          `json:"metric_units"`
	IgnoreSymbols    bool          `json:"ignore_symbols"`
	Fuzzy            bool          `json:"fuzzy"`
	PushpinID        int64         `json:"pushpin_id,omitempty"`
	FoundItemID      int64         `json:"found_item_id,omitempty"`
	FindText         string        `json:"find_text,omitempty"`
	LastFixAt        *time.Time    `json:"last_fix_at,omitempty"`
}

func snapshotOf(id string, s *session.State, route *engine.Route, inFlight bool) Snapshot {
	snap := Snapshot{
		SessionID:        id,
		Profile:          string(s.Profile),
		RouteStart:       latLng(s.RouteStart),
		RouteEnd:         latLng(s.RouteEnd),
		LastPressed:      latLng(s.LastPressed),
		LastPosition:     latLng(s.LastPosition),
		RouteInFlight:    inFlight,
		NavigateEnabled:  s.NavigateEnabled,
		Navigating:       s.Navigating,
		ShowLocation:     s.ShowLocation,
		Tracking:         s.Tracking,
		UpdatingLocation: s.UpdatingLocation,
		MetricUnits:      s.MetricUnits,
		IgnoreSymbols:    s.IgnoreSymbols,
		Fuzzy:            s.Fuzzy,
		PushpinID:        s.PushpinID,
		FoundItemID:      s.FoundItemID,
		FindText:         s.FindText,
	}
	if s.Tracking {
		snap.TrackLength = geo.FormatDistance(s.TrackLengthM, s.MetricUnits, true)
	}
	if !s.LastFixAt.IsZero() {
		t := s.LastFixAt
		snap.LastFixAt = &t
	}
	if route != nil {
		snap.Route = &RouteSummary{
			Profile:   string(route.Profile),
			DistanceM: route.DistanceM,
			Distance:  geo.FormatDistance(float64(route.DistanceM), s.MetricUnits, true),
			DurationS: int64(route.Duration / time.Second),
			Summary:   route.Summary,
			Steps:     len(route.Steps),
		}
	}
	return snap
}

// PressResult describes what is under a long-pressed point.
type PressResult struct {
	Point     LatLng             `json:"point"`
	MapPoint  MapXY              `json:"map_point"`
	Objects   []engine.MapObject `json:"objects"`
	PushpinID int64              `json:"pushpin_id,omitempty"`
	Menu      []string           `json:"menu"`
}

func pressMenu(pushpinID int64) []string {
	pin := MenuInsertPin
	if pushpinID != 0 {
		pin = MenuDeletePin
	}
	return []string{pin, MenuStartHere, MenuEndHere}
}

// Options are the per-session toggles. Nil fields are left unchanged.
type Options struct {
	IgnoreSymbols *bool `json:"ignore_symbols,omitempty"`
	Fuzzy         *bool `json:"fuzzy,omitempty"`
	MetricUnits   *bool `json:"metric_units,omitempty"`
}
