package media

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.PUT("/reports/:id/image", h.PutImage)
	api.GET("/reports/:id/image", h.GetImage)
	api.GET("/patients/:id/images", h.ListImages)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// PutImage stores the raw request body as the report's image.
func (h *Handler) PutImage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	// Read one byte past the limit so oversized bodies reach the service
	// check instead of being silently truncated.
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, int64(h.svc.MaxBytes())+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}
	if err := h.svc.StoreImage(c.Request().Context(), id, data); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetImage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, err := h.svc.RetrieveImage(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

func (h *Handler) ListImages(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	refs, err := h.svc.ListImages(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  refs,
		"total": len(refs),
	})
}
