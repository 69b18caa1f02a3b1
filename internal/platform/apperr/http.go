package apperr

import (
	"github.com/labstack/echo/v4"
)

// ToHTTP converts a service error into the echo error the API returns.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}
	return echo.NewHTTPError(HTTPStatus(err), err.Error()).SetInternal(err)
}
