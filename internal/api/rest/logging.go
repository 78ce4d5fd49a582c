package rest

import (
	"net/http"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
)

// LoggingTransport logs method, path, status and duration of each request.
// Headers are never logged.
type LoggingTransport struct {
	next   http.RoundTripper
	logger *logger.Logger
}

// NewLoggingTransport wraps next with request logging.
func NewLoggingTransport(next http.RoundTripper, logger *logger.Logger) *LoggingTransport {
	return &LoggingTransport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	t.logger.Debug("HTTP request started",
		"method", r.Method,
		"path", r.URL.Path)

	resp, err := t.next.RoundTrip(r)

	duration := time.Since(start)

	if err != nil {
		t.logger.Warn("HTTP request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error())
		return nil, err
	}

	t.logger.Debug("HTTP request completed",
		"method", r.Method,
		"path", r.URL.Path,
		"duration_ms", duration.Milliseconds(),
		"status", resp.StatusCode)

	return resp, nil
}
