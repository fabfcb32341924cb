// README: Location fix, navigation, show-location and tracking handlers.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"compass/internal/modules/controller"
	"compass/internal/modules/navigation"
	"compass/internal/realtime"
)

type LocationHandler struct {
	sessions *controller.Manager
}

func NewLocationHandler(m *controller.Manager) *LocationHandler {
	return &LocationHandler{sessions: m}
}

// Fix accepts one fix or a batch; the last one in a batch is used.
func (h *LocationHandler) Fix(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	reports, err := realtime.DecodeReports(body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	voice, err := ctrl.LocationFix(c.Request.Context(), navigation.Locations(reports, time.Now()))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"voice": voice})
}

type fixErrorReq struct {
	Message string `json:"message"`
}

func (h *LocationHandler) FixError(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req fixErrorReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Message == "" {
		req.Message = "location provider error"
	}
	if err := ctrl.LocationError(c.Request.Context(), errors.New(req.Message)); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type startNavigationReq struct {
	Confirm bool `json:"confirm"`
}

func (h *LocationHandler) StartNavigation(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req startNavigationReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := ctrl.StartNavigation(c.Request.Context(), req.Confirm); err != nil {
		writeSessionError(c, err)
		return
	}
	h.writeSnapshot(c, ctrl)
}

func (h *LocationHandler) StopNavigation(c *gin.Context) {
	h.toggle(c, (*controller.Controller).StopNavigation)
}

func (h *LocationHandler) ShowLocation(c *gin.Context) {
	h.toggle(c, (*controller.Controller).ShowLocation)
}

func (h *LocationHandler) HideLocation(c *gin.Context) {
	h.toggle(c, (*controller.Controller).HideLocation)
}

func (h *LocationHandler) StartTracking(c *gin.Context) {
	h.toggle(c, (*controller.Controller).StartTracking)
}

func (h *LocationHandler) StopTracking(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	length, err := ctrl.StopTracking(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"track_length": length})
}

func (h *LocationHandler) toggle(c *gin.Context, op func(*controller.Controller, context.Context) error) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	if err := op(ctrl, c.Request.Context()); err != nil {
		writeSessionError(c, err)
		return
	}
	h.writeSnapshot(c, ctrl)
}

func (h *LocationHandler) writeSnapshot(c *gin.Context, ctrl *controller.Controller) {
	snap, err := ctrl.Snapshot(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}
