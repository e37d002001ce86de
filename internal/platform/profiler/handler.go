package profiler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the administrative profiler endpoints.
type Handler struct {
	prof *Profiler
}

func NewHandler(prof *Profiler) *Handler {
	return &Handler{prof: prof}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/admin/profiler", h.Snapshot)
	api.DELETE("/admin/profiler", h.Clear)
}

func (h *Handler) Snapshot(c echo.Context) error {
	ops := h.prof.Snapshot()
	if ops == nil {
		ops = []SlowOp{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"threshold": h.prof.Threshold().String(),
		"ops":       ops,
	})
}

func (h *Handler) Clear(c echo.Context) error {
	return c.JSON(http.StatusOK, h.prof.Clear())
}
