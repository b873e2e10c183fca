// Package api exposes the operator controls of a session over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewServer creates the Echo instance with recovery and slog request logging.
func NewServer(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelDebug
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	}))
	return e
}

// Probe reports whether a dependency is usable.
type Probe func() bool

// RegisterProbes adds /healthz, which always answers, and /readyz, which
// fails while any probe fails.
func RegisterProbes(e *echo.Echo, probes map[string]Probe) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", func(c echo.Context) error {
		failing := map[string]bool{}
		for name, probe := range probes {
			if !probe() {
				failing[name] = false
			}
		}
		if len(failing) > 0 {
			return c.JSON(http.StatusServiceUnavailable, failing)
		}
		return c.String(http.StatusOK, "ready")
	})
}
