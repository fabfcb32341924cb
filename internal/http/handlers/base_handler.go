// README: Base handler utilities (JSON helpers, error mapping, session lookup).
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"compass/internal/engine"
	"compass/internal/http/middleware"
	"compass/internal/modules/controller"
	"compass/internal/modules/routing"
	"compass/internal/types"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    *int   `json:"code,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// bindOptionalJSON binds a body that may be absent. It writes 400 and
// returns false when a body is present but malformed.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeSessionError(c *gin.Context, err error) {
	var submit *engine.SubmitError
	switch {
	case errors.As(err, &submit):
		code := int(submit.Code)
		writeJSON(c, http.StatusUnprocessableEntity, errorResponse{Error: routing.SubmitMessage(submit.Code), Code: &code})
	case errors.Is(err, controller.ErrConfirmationRequired):
		writeJSON(c, http.StatusPreconditionRequired, errorResponse{Error: "confirmation required", Warning: err.Error()})
	case errors.Is(err, controller.ErrBadRequest), errors.Is(err, engine.ErrUnknownProfile):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, controller.ErrNotFound), errors.Is(err, controller.ErrPinNotFound), errors.Is(err, controller.ErrItemNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, controller.ErrNoRoute), errors.Is(err, controller.ErrNoPress), errors.Is(err, controller.ErrRouteActive):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(c, http.StatusGatewayTimeout, "request timed out")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// session resolves the :id session for the caller, writing the error
// response when it cannot.
func session(c *gin.Context, m *controller.Manager) (*controller.Controller, bool) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing session id")
		return nil, false
	}
	ctrl, err := m.Get(id, middleware.CallerUID(c))
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return ctrl, true
}

// pointReq is a point in the request body. Without a coord it is a
// latitude/longitude pair; "map" and "display" take x and y.
type pointReq struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Coord string  `json:"coord"`
}

func (p *pointReq) point() (types.Point, error) {
	if p == nil {
		return types.Point{}, nil
	}
	switch strings.ToLower(p.Coord) {
	case "", "degree":
		return types.Degrees(p.Lat, p.Lng), nil
	case "map":
		return types.Point{X: p.X, Y: p.Y, Coord: types.CoordMap}, nil
	case "display":
		return types.Point{X: p.X, Y: p.Y, Coord: types.CoordDisplay}, nil
	default:
		return types.Point{}, controller.ErrBadRequest
	}
}

func wantsWait(c *gin.Context) bool {
	switch c.Query("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}

type outcomeResponse struct {
	RequestID uint64  `json:"request_id"`
	Status    string  `json:"status"`
	Code      *int    `json:"code,omitempty"`
	Stale     bool    `json:"stale,omitempty"`
	Message   string  `json:"message,omitempty"`
	DistanceM *int    `json:"distance_m,omitempty"`
	DurationS *int64  `json:"duration_s,omitempty"`
	Summary   *string `json:"summary,omitempty"`
}

// writePending reports a submitted route request. With ?wait=true the
// response waits for the request's outcome.
func writePending(c *gin.Context, p *routing.Pending) {
	if p == nil {
		writeJSON(c, http.StatusOK, outcomeResponse{Status: "waiting_for_endpoints"})
		return
	}
	if !wantsWait(c) {
		writeJSON(c, http.StatusAccepted, outcomeResponse{RequestID: p.RequestID, Status: "pending"})
		return
	}
	select {
	case out := <-p.Done():
		writeJSON(c, http.StatusOK, outcomeOf(out))
	case <-c.Request.Context().Done():
		writeError(c, http.StatusGatewayTimeout, "route request still pending")
	}
}

func outcomeOf(out routing.Outcome) outcomeResponse {
	code := int(out.Code)
	resp := outcomeResponse{
		RequestID: out.RequestID,
		Code:      &code,
		Stale:     out.Stale,
		Message:   out.Message,
	}
	switch {
	case out.Stale:
		resp.Status = "stale"
	case out.Code == engine.ResultOK:
		resp.Status = "ok"
	default:
		resp.Status = "failed"
	}
	if r := out.Route; r != nil && !out.Stale {
		d := int64(r.Duration.Seconds())
		resp.DistanceM = &r.DistanceM
		resp.DurationS = &d
		resp.Summary = &r.Summary
	}
	return resp
}
