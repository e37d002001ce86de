package summary

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/summary", h.GetSummary)
	api.POST("/summary/rebuild", h.Rebuild)
}

func (h *Handler) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Get(c.Request().Context()))
}

func (h *Handler) Rebuild(c echo.Context) error {
	h.svc.Rebuild()
	return c.JSON(http.StatusAccepted, map[string]bool{"started": true})
}
