package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

func statusFor(err error) int {
	var (
		cfgErr     *models.ConfigurationError
		weatherErr *models.WeatherFetchError
		valErr     *validationError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &weatherErr):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExecuted), errors.Is(err, models.ErrAlreadyAcknowledged):
		return http.StatusConflict
	case errors.Is(err, models.ErrApprovalNotRequired), errors.Is(err, models.ErrInvalidActionIndex):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
