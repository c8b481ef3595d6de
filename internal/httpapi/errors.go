package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"mathify/internal/apiclient"
	"mathify/internal/dashboard"
	"mathify/internal/model"
)

var badInput = []error{
	model.ErrInvalidMonth,
	dashboard.ErrMissingFields,
	dashboard.ErrInvalidDate,
	dashboard.ErrInvalidTime,
	dashboard.ErrInvalidPayment,
	dashboard.ErrInvalidRow,
	dashboard.ErrInvalidStudyHours,
}

var conflicts = []error{
	dashboard.ErrNoBatchSelected,
	dashboard.ErrEmptyRoster,
	dashboard.ErrUnknownStudent,
	dashboard.ErrFeeFormClosed,
	dashboard.ErrFeeFormNotReady,
	dashboard.ErrFeeSettled,
	dashboard.ErrDetailClosed,
	dashboard.ErrImportIncomplete,
	dashboard.ErrNothingImported,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps an operation error to the HTTP status the browser sees.
func statusFor(err error) int {
	switch {
	case isAny(err, badInput):
		return http.StatusBadRequest
	case isAny(err, conflicts):
		return http.StatusConflict
	case apiclient.IsUnauthorized(err):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if e, ok := apiclient.AsError(err); ok {
		msg = e.Message()
	} else if status == http.StatusBadGateway {
		msg = "backend unavailable"
	}
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

// bindError turns a binding failure into a readable 400.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, formatValidationError(fe))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.Join(msgs, "; ")})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "email":
		return e.Field() + " must be a valid email address"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "yearmonth":
		return e.Field() + " must be YYYY-MM"
	case "hhmm":
		return e.Field() + " must be HH:mm"
	case "datetime":
		return e.Field() + " must match " + e.Param()
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
