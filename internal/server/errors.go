package server

import (
	"errors"
	"net/http"

	"github.com/zeusync/configurator/internal/core/events"
)

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrListenerFailed       = errors.New("failed to create listener")
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, events.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, events.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, events.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
