package report

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/pkg/pagination"
)

type Handler struct {
	svc          *Service
	defaultLimit int
}

func NewHandler(svc *Service, defaultLimit int) *Handler {
	return &Handler{svc: svc, defaultLimit: defaultLimit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports", h.ListReports)
	api.GET("/reports/search", h.SearchReports)
	api.GET("/patients/:id/history", h.GetHistory)
	api.PUT("/patients/:id/annotations/:column", h.UpdateAnnotation)
}

type AnnotationRequest struct {
	Value string `json:"value" validate:"required"`
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func floatParam(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &v, nil
}

func stringParam(c echo.Context, name string) *string {
	if v := c.QueryParam(name); v != "" {
		return &v
	}
	return nil
}

func filterFromContext(c echo.Context) (Filter, error) {
	var f Filter
	var err error
	if f.MinAge, err = floatParam(c, "min_age"); err != nil {
		return f, err
	}
	if f.MaxAge, err = floatParam(c, "max_age"); err != nil {
		return f, err
	}
	f.Gender = stringParam(c, "gender")
	f.Status = stringParam(c, "status")
	return f, nil
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContextWithDefault(c, h.defaultLimit)
	filter, err := filterFromContext(c)
	if err != nil {
		return err
	}
	page, err := h.svc.GetPage(c.Request().Context(), PageQuery{Limit: pg.Limit, Offset: pg.Offset, Filter: filter})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page.Items, page.Total, page.Limit, page.Offset))
}

func (h *Handler) SearchReports(c echo.Context) error {
	items, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.GetHistory(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": id,
		"data":       items,
		"total":      len(items),
	})
}

func (h *Handler) UpdateAnnotation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AnnotationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.svc.UpdateLatestAnnotation(c.Request().Context(), id, c.Param("column"), req.Value); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
