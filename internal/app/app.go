// Package app contains the web front-end: the login, logout, registration,
// and profile routes, plus the dev-mode demo pages gated on groups.
package app

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/yaap/internal/authz"
	"github.com/stolasapp/yaap/internal/config"
	"github.com/stolasapp/yaap/internal/directory"
	"github.com/stolasapp/yaap/internal/session"
)

// New creates a web front-end server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	auth *authz.Authorizer,
	sessions *session.Manager,
	users *directory.Directory,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}

	srv.Use(
		middleware.Recover(),
		middleware.Secure(),
		middleware.RequestID(),
		auth.WithIdentity(),
	)

	h := handler{
		cfg:      cfg,
		auth:     auth,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
	h.routes(srv)
	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
