package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"logistria/internal/docstore"
	"logistria/internal/etl"
	"logistria/internal/identity"
	"logistria/internal/service"
	"logistria/internal/storage"
)

var errUploadTooLarge = errors.New("uploaded file is too large")

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var (
		cfgErr    *etl.ConfigurationError
		formatErr *etl.UnsupportedFormatError
		parseErr  *etl.ParseError
		emptyErr  *etl.EmptyInputError
		commitErr *etl.CommitError
		valErr    *service.ValidationError
	)
	switch {
	case errors.Is(err, errUploadTooLarge), errors.Is(err, docstore.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &cfgErr), errors.As(err, &formatErr), errors.As(err, &parseErr),
		errors.As(err, &emptyErr), errors.As(err, &valErr), errors.Is(err, service.ErrUnknownProduct):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrJobNotFound), errors.Is(err, storage.ErrApprovalNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrImportInFlight):
		return http.StatusConflict
	case errors.As(err, &commitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...} with details for field and
// parse errors. Server-side failures are also attached for logging.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := gin.H{"error": err.Error()}
	var (
		valErr   *service.ValidationError
		parseErr *etl.ParseError
	)
	if errors.As(err, &valErr) {
		body["fields"] = valErr.Fields
	}
	if errors.As(err, &parseErr) && parseErr.Line > 0 {
		body["line"] = parseErr.Line
		if parseErr.Column != "" {
			body["column"] = parseErr.Column
		}
	}
	c.JSON(status, body)
}

// isTooLarge reports whether err came from an http.MaxBytesReader.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
