// README: Long press and route handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"compass/internal/engine"
	"compass/internal/modules/controller"
)

type RouteHandler struct {
	sessions *controller.Manager
}

func NewRouteHandler(m *controller.Manager) *RouteHandler {
	return &RouteHandler{sessions: m}
}

type pressReq struct {
	pointReq
	RadiusM float64 `json:"radius_m"`
}

func (h *RouteHandler) Press(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req pressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := req.point()
	if err != nil {
		writeSessionError(c, err)
		return
	}
	res, err := ctrl.Press(c.Request.Context(), p, req.RadiusM)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *RouteHandler) StartHere(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	p, err := ctrl.StartHere(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writePending(c, p)
}

func (h *RouteHandler) EndHere(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	p, err := ctrl.EndHere(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writePending(c, p)
}

type routeReq struct {
	Start   *pointReq `json:"start"`
	End     *pointReq `json:"end"`
	Profile string    `json:"profile"`
}

func (h *RouteHandler) Route(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	start, err := req.Start.point()
	if err != nil {
		writeSessionError(c, err)
		return
	}
	end, err := req.End.point()
	if err != nil {
		writeSessionError(c, err)
		return
	}
	var profile engine.Profile
	if req.Profile != "" {
		if profile, err = engine.ParseProfile(req.Profile); err != nil {
			writeSessionError(c, err)
			return
		}
	}
	p, err := ctrl.Route(c.Request.Context(), start, end, profile)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writePending(c, p)
}

func (h *RouteHandler) Reverse(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	p, err := ctrl.Reverse(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writePending(c, p)
}

func (h *RouteHandler) Delete(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	if err := ctrl.DeleteRoute(c.Request.Context()); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type profileReq struct {
	Profile string `json:"profile"`
}

func (h *RouteHandler) SetProfile(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	profile, err := engine.ParseProfile(req.Profile)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	p, err := ctrl.SetProfile(c.Request.Context(), profile)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writePending(c, p)
}

func (h *RouteHandler) GeoJSON(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	fc, err := ctrl.RouteGeoJSON(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

type historyItem struct {
	RequestID uint64     `json:"request_id"`
	Profile   string     `json:"profile"`
	Start     *latLngOut `json:"start"`
	End       *latLngOut `json:"end"`
	Code      int        `json:"code"`
	Result    string     `json:"result"`
	Stale     bool       `json:"stale"`
	DistanceM int        `json:"distance_m"`
	DurationS int64      `json:"duration_s"`
	CreatedAt string     `json:"created_at"`
}

type latLngOut struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *RouteHandler) History(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	entries, err := ctrl.RouteHistory(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			RequestID: e.RequestID,
			Profile:   string(e.Profile),
			Start:     &latLngOut{Lat: e.Start.Lat(), Lng: e.Start.Lng()},
			End:       &latLngOut{Lat: e.End.Lat(), Lng: e.End.Lng()},
			Code:      int(e.Code),
			Result:    e.Code.String(),
			Stale:     e.Stale,
			DistanceM: e.DistanceM,
			DurationS: int64(e.Duration.Seconds()),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"items": items})
}
