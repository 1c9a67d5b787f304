package app

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/yaap/internal/authz"
	"github.com/stolasapp/yaap/internal/config"
	"github.com/stolasapp/yaap/internal/directory"
	"github.com/stolasapp/yaap/internal/session"
	"github.com/stolasapp/yaap/internal/storage"
)

type handler struct {
	cfg      *config.Config
	auth     *authz.Authorizer
	sessions *session.Manager
	users    *directory.Directory
	logger   *slog.Logger
}

func (h handler) routes(e *echo.Echo) {
	r := h.cfg.Routes
	e.GET(r.Login, h.loginForm)
	e.POST(r.Login, h.login)
	e.GET(r.Logout, h.logoutForm)
	e.POST(r.Logout, h.logout)
	if h.cfg.AllowRegistration {
		e.GET(r.Register, h.signupForm)
		e.POST(r.Register, h.signup)
	}
	e.GET(r.User, h.profile, h.auth.Require())

	if h.cfg.DevMode {
		e.GET("/", h.demoIndex)
		e.GET("/required/", h.demoRequired, h.auth.Require())
		e.GET("/special/", h.demoSpecial, h.auth.Require("special"))
	}
}

func (h handler) loginForm(c echo.Context) error {
	if identity, ok := authz.Identity(c); ok {
		return h.render(c, http.StatusOK, page{
			Title: "Sign in",
			Aside: "You are already logged in as '" + identity.Username + "'.",
			Body:  h.logoutBody(c),
		})
	}
	return h.render(c, http.StatusOK, page{
		Title: "Sign in",
		Body:  h.loginBody(c),
	})
}

func (h handler) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	token, err := h.sessions.Login(c.Request().Context(), username, password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		return h.render(c, http.StatusUnauthorized, page{
			Title: "Sign in",
			Error: true,
			Aside: "Invalid username or password.",
			Body:  h.loginBody(c),
		})
	} else if err != nil {
		return err
	}

	h.auth.SetSessionCookie(c, token)
	h.logger.InfoContext(c.Request().Context(), "user logged in",
		slog.String("username", username))
	return c.Redirect(http.StatusFound, h.returnTarget(c))
}

func (h handler) logoutForm(c echo.Context) error {
	if _, ok := authz.Identity(c); !ok {
		return h.render(c, http.StatusOK, page{
			Title: "You are currently not logged in.",
			Body:  h.loginBody(c),
		})
	}
	return h.render(c, http.StatusOK, page{
		Title: "Confirm log out",
		Body:  h.logoutBody(c),
	})
}

func (h handler) logout(c echo.Context) error {
	if identity, ok := authz.Identity(c); ok {
		if err := h.sessions.Logout(c.Request().Context(), identity.Username); err != nil {
			return err
		}
		h.logger.InfoContext(c.Request().Context(), "user logged out",
			slog.String("username", identity.Username))
	}
	h.auth.ClearSessionCookie(c)

	if target := safeReturnURL(c.QueryParam("from_url")); target != "" {
		return c.Redirect(http.StatusFound, target)
	}
	return h.render(c, http.StatusOK, page{
		Title: "Logged out",
		Aside: "Logged out successfully.",
		Body:  h.loginBody(c),
	})
}

func (h handler) signupForm(c echo.Context) error {
	return h.render(c, http.StatusOK, page{
		Title: "Register",
		Body:  h.signupBody(c),
	})
}

func (h handler) signup(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	email := c.FormValue("email")

	_, err := h.users.CreateUser(c.Request().Context(), username, password, email)
	if errors.Is(err, storage.ErrDuplicateUser) {
		return h.render(c, http.StatusConflict, page{
			Title: "Register",
			Error: true,
			Aside: "That username or email is already taken.",
			Body:  h.signupBody(c),
		})
	} else if err != nil {
		return err
	}
	h.logger.InfoContext(c.Request().Context(), "user registered",
		slog.String("username", username))

	token, err := h.sessions.Login(c.Request().Context(), username, password)
	if err != nil {
		return err
	}
	h.auth.SetSessionCookie(c, token)
	return c.Redirect(http.StatusFound, h.returnTarget(c))
}

func (h handler) profile(c echo.Context) error {
	identity, _ := authz.Identity(c)
	return h.render(c, http.StatusOK, page{
		Title: "Profile",
		Body:  h.profileBody(c, identity),
	})
}

func (h handler) demoIndex(c echo.Context) error {
	return h.render(c, http.StatusOK, page{
		Title: "Demo",
		Body:  h.demoBody(c),
	})
}

func (h handler) demoRequired(c echo.Context) error {
	identity, _ := authz.Identity(c)
	return h.render(c, http.StatusOK, page{
		Title: "Hey " + identity.Username + "!",
		Body: "<p>You can see this page because you are logged in.</p>" +
			`<p><a href="/">Go back</a></p>`,
	})
}

func (h handler) demoSpecial(c echo.Context) error {
	return h.render(c, http.StatusOK, page{
		Title: "Shh!",
		Body: "<p>You can see this page because you are logged in and belong " +
			"to the special group.</p>" +
			`<p><a href="/">Go back</a></p>`,
	})
}

// returnTarget is where a successful login or registration lands: the
// sanitized from_url parameter when present, the profile page otherwise.
func (h handler) returnTarget(c echo.Context) string {
	if target := safeReturnURL(c.QueryParam("from_url")); target != "" {
		return target
	}
	return h.cfg.Routes.User
}

// safeReturnURL keeps redirects on this site: only rooted paths pass, so a
// crafted from_url cannot bounce the browser to another host.
func safeReturnURL(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}

// withFromURL re-appends the pending return target to an auth route path.
func withFromURL(c echo.Context, path string) string {
	target := c.QueryParam("from_url")
	if target == "" {
		target = c.Request().RequestURI
	}
	return path + "?from_url=" + url.QueryEscape(target)
}
