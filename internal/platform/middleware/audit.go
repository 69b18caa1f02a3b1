package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api/v1/"

// Audit logs one "phi_access" event per API request: what kind of record
// was touched, how, and for which patient or report when the path names
// one. Health and metrics endpoints are not audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			resource, id := resourceFromPath(req.URL.Path)
			evt := logger.Info().
				Str("type", "phi_audit").
				Str("request_id", requestID(c)).
				Str("action", methodToAction(req.Method)).
				Str("resource", resource).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Int("status", responseStatus(c, err))
			switch resource {
			case "patients":
				evt = evt.Int64("patient_id", id)
			case "reports":
				evt = evt.Int64("report_id", id)
			}
			evt.Msg("phi_access")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath splits /api/v1/<resource>/<id>/... and returns the
// resource name and the numeric id, or 0 when the second segment is not one.
func resourceFromPath(path string) (string, int64) {
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	resource := segments[0]
	if resource == "" {
		resource = "unknown"
	}
	var id int64
	if len(segments) > 1 {
		id, _ = strconv.ParseInt(segments[1], 10, 64)
	}
	return resource, id
}
