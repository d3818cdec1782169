package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/workbench"
)

// taxonomyCode maps an error to spec §7's error taxonomy code, used
// both for the response body's "error" field and the metrics outcome
// label.
func taxonomyCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, workbench.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, workbench.ErrNotFound):
		return "not_found"
	case errors.Is(err, workbench.ErrVerifyFailed):
		return "verify_failed"
	case errors.Is(err, commitstore.ErrInvalidIndex):
		return "invalid_index"
	case errors.Is(err, commitstore.ErrInvalidValueType):
		return "invalid_value_type"
	case errors.Is(err, context.DeadlineExceeded):
		return "store_timeout"
	default:
		return "internal"
	}
}

// httpStatus maps a taxonomy code to the HTTP status spec §7 assigns
// it.
func httpStatus(code string) int {
	switch code {
	case "bad_request", "invalid_index", "invalid_value_type":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "verify_failed", "store_timeout", "internal":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response per spec §7, tagging
// store_timeout as retryable the way the spec requires.
func writeError(c echo.Context, err error) error {
	code := taxonomyCode(err)
	body := map[string]any{"error": code, "message": err.Error()}
	if code == "store_timeout" {
		body["retryable"] = true
	}
	return c.JSON(httpStatus(code), body)
}
