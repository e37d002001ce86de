package claims

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/claims", h.ListClaims)
	api.GET("/claims/:id", h.GetClaim)
}

func (h *Handler) ListClaims(c echo.Context) error {
	spec := specFromRequest(c)
	res, err := h.svc.List(c.Request().Context(), spec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetClaim(c echo.Context) error {
	cl, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "claim not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, cl)
}

// specFromRequest maps query parameters onto a QuerySpec. Malformed values
// are dropped in favor of defaults; listing never 400s on bad paging input.
func specFromRequest(c echo.Context) QuerySpec {
	spec := QuerySpec{
		Keyword:   c.QueryParam("q"),
		Status:    c.QueryParam("status"),
		Region:    c.QueryParam("region"),
		Specialty: c.QueryParam("specialty"),
		Codes:     c.QueryParam("codes"),
		SortBy:    c.QueryParam("sortBy"),
		SortDir:   c.QueryParam("sortDir"),
		Cursor:    c.QueryParam("cursor"),
	}

	spec.UseCursor = c.QueryParams().Has("cursor")
	if v, err := strconv.ParseBool(c.QueryParam("includeTotal")); err == nil {
		spec.IncludeTotal = v
	}

	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		spec.Page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil {
		spec.PageSize = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("minAmount"), 64); err == nil {
		spec.MinAmount = &v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("maxAmount"), 64); err == nil {
		spec.MaxAmount = &v
	}
	if t, ok := parseDate(c.QueryParam("dateFrom")); ok {
		spec.DateFrom = &t
	}
	if t, ok := parseDate(c.QueryParam("dateTo")); ok {
		spec.DateTo = &t
	}

	return spec
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
