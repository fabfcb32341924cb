// README: Pushpin, search and option handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"compass/internal/engine"
	"compass/internal/modules/controller"
)

type SearchHandler struct {
	sessions *controller.Manager
}

func NewSearchHandler(m *controller.Manager) *SearchHandler {
	return &SearchHandler{sessions: m}
}

func (h *SearchHandler) InsertPin(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	pin, err := ctrl.InsertPin(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, pin)
}

func (h *SearchHandler) DeletePin(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("pinID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid pin id")
		return
	}
	if err := ctrl.DeletePin(c.Request.Context(), id); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type findReq struct {
	Text string `json:"text"`
}

func (h *SearchHandler) Find(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req findReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	found, err := ctrl.Find(c.Request.Context(), req.Text)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeFound(c, found)
}

type findAddressReq struct {
	Building string `json:"building"`
	Street   string `json:"street"`
	Locality string `json:"locality"`
}

func (h *SearchHandler) FindAddress(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req findAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	found, err := ctrl.FindAddress(c.Request.Context(), engine.Address{
		Building: req.Building,
		Street:   req.Street,
		Locality: req.Locality,
	})
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeFound(c, found)
}

func writeFound(c *gin.Context, found []engine.MapObject) {
	if found == nil {
		found = []engine.MapObject{}
	}
	writeJSON(c, http.StatusOK, gin.H{"items": found})
}

func (h *SearchHandler) ChooseFound(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid index")
		return
	}
	obj, err := ctrl.ChooseFound(c.Request.Context(), index)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, obj)
}

func (h *SearchHandler) SetOptions(c *gin.Context) {
	ctrl, ok := session(c, h.sessions)
	if !ok {
		return
	}
	var req controller.Options
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	snap, err := ctrl.SetOptions(c.Request.Context(), req)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}
