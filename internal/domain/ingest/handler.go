package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrics/healthmetrics/internal/importer"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reports", h.CreateReport)
	api.POST("/reports/batch", h.CreateBatch)
	api.POST("/imports", h.ImportFile)
}

// CreateReportRequest carries one manually entered record. Image is base64.
type CreateReportRequest struct {
	Record map[string]any `json:"record" validate:"required"`
	Image  string         `json:"image,omitempty"`
}

type BatchRequest struct {
	Rows []map[string]any `json:"rows" validate:"required,min=1"`
}

// decodeJSON reads the body with numbers kept as json.Number so integer
// cells are not rounded through float64 before parsing.
func decodeJSON(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

func (h *Handler) CreateReport(c echo.Context) error {
	var req CreateReportRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	var image []byte
	if req.Image != "" {
		b, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "image is not valid base64")
		}
		image = b
	}
	id, err := h.svc.InsertSingle(c.Request().Context(), Row(req.Record), image)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"report_id": id})
}

func (h *Handler) CreateBatch(c echo.Context) error {
	var req BatchRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	rows := make([]Row, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = Row(r)
	}
	return h.respondBatch(c, rows)
}

// ImportFile accepts a multipart upload (field "file") of a CSV or XLSX
// sheet and ingests its rows as one batch.
func (h *Handler) ImportFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open upload")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}

	records, err := importer.Read(fh.Filename, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row(r)
	}
	return h.respondBatch(c, rows)
}

// respondBatch answers 200 when every row was inserted and 207 with the
// same report body when some rows failed.
func (h *Handler) respondBatch(c echo.Context, rows []Row) error {
	rep, err := h.svc.InsertBatch(c.Request().Context(), rows)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPartialBatch {
			return c.JSON(http.StatusMultiStatus, rep)
		}
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}
