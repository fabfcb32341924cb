// README: Session lifecycle handlers, the device event stream and service info.
package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"compass/internal/http/middleware"
	"compass/internal/modules/controller"
	"compass/internal/realtime"
)

// EventStream attaches devices to a session's event stream.
type EventStream interface {
	Serve(ctx context.Context, conn *websocket.Conn, sessionID string)
	CloseSession(sessionID string)
}

type SessionHandler struct {
	sessions *controller.Manager
	stream   EventStream
	version  string
}

func NewSessionHandler(m *controller.Manager, stream EventStream, version string) *SessionHandler {
	return &SessionHandler{sessions: m, stream: stream, version: version}
}

type createSessionReq struct {
	DeviceToken string `json:"device_token"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctrl := h.sessions.Create(middleware.CallerUID(c), req.DeviceToken)
	snap, err := ctrl.Snapshot(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, snap)
}

func (h *SessionHandler) Get(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	snap, err := ctrl.Snapshot(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (h *SessionHandler) Close(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Close(c.Request.Context(), id, middleware.CallerUID(c)); err != nil {
		writeSessionError(c, err)
		return
	}
	if h.stream != nil {
		h.stream.CloseSession(id)
	}
	c.Status(http.StatusNoContent)
}

// Events upgrades to a WebSocket carrying the session's events. The device
// sends location fixes back over the same connection.
func (h *SessionHandler) Events(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	if h.stream == nil {
		writeError(c, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Printf("http: session %s upgrade failed: %v", ctrl.ID(), err)
		return
	}
	h.stream.Serve(c.Request.Context(), conn, ctrl.ID())
}

func (h *SessionHandler) About(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"service":  "compass",
		"version":  h.version,
		"engine":   h.sessions.EngineName(),
		"sessions": h.sessions.Count(),
	})
}
