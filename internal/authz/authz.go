// Package authz is the per-request authorization middleware. It resolves the
// identity from the session cookie and gates routes on group membership.
//
// A route carries one of three requirement shapes:
//
//   - no [Authorizer.Require] middleware: the route never gates, and runs for
//     anonymous and authenticated requests alike;
//   - Require() with no groups: any authenticated identity suffices;
//   - Require("a", "b"): the identity's groups must intersect the named set.
//
// An anonymous request hitting a gated route is redirected (302) to the login
// page with the original URL as the from_url return target; an authenticated
// request without an intersecting group is rejected with 403. Absence of a
// valid session is a normal outcome, never a request-failing error.
package authz

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/yaap/internal/sec"
	"github.com/stolasapp/yaap/internal/session"
)

// identityKey is the per-request echo context key the resolved identity is
// stored under. Identity travels on the request, never in shared state.
const identityKey = "yaap.identity"

// Config carries the cookie and redirect parameters for the middleware.
type Config struct {
	// CookieKey is the name of the session cookie.
	CookieKey string
	// CookieSecret signs the session cookie value.
	CookieSecret string
	// LoginPath is the redirect target for anonymous requests to gated
	// routes.
	LoginPath string
}

// Authorizer builds the identity-resolution and route-gating middleware.
type Authorizer struct {
	sessions *session.Manager
	cfg      Config
}

// New returns an Authorizer resolving identities through sessions.
func New(sessions *session.Manager, cfg Config) *Authorizer {
	return &Authorizer{sessions: sessions, cfg: cfg}
}

// WithIdentity resolves the session cookie and attaches the identity to the
// request context. Requests without a valid, unexpired session pass through
// anonymously.
func (a *Authorizer) WithIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if identity, ok := a.resolve(c); ok {
				c.Set(identityKey, identity)
			}
			return next(c)
		}
	}
}

func (a *Authorizer) resolve(c echo.Context) (session.Identity, bool) {
	cookie, err := c.Cookie(a.cfg.CookieKey)
	if err != nil {
		return session.Identity{}, false
	}
	token, ok := sec.VerifyCookie(a.cfg.CookieSecret, cookie.Value)
	if !ok {
		return session.Identity{}, false
	}
	identity, err := a.sessions.Resolve(c.Request().Context(), token)
	if err != nil {
		// Unknown and expired sessions both mean anonymous; other resolution
		// failures must not crash the request either.
		return session.Identity{}, false
	}
	return identity, true
}

// Require gates a route. With no groups, any authenticated identity passes;
// with groups, the identity must belong to at least one of them. Must run
// after [Authorizer.WithIdentity].
func (a *Authorizer) Require(groups ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := Identity(c)
			if !ok {
				return c.Redirect(http.StatusFound, a.loginURL(c))
			}
			if len(groups) > 0 && !intersects(groups, identity.Groups) {
				return echo.NewHTTPError(http.StatusForbidden,
					"you do not have sufficient access rights")
			}
			return next(c)
		}
	}
}

// Identity returns the identity resolved for this request, if any.
func Identity(c echo.Context) (session.Identity, bool) {
	identity, ok := c.Get(identityKey).(session.Identity)
	return identity, ok
}

// SetSessionCookie signs the token and sets it as the session cookie, scoped
// to path /.
func (a *Authorizer) SetSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     a.cfg.CookieKey,
		Value:    sec.SignCookie(a.cfg.CookieSecret, token),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the response.
func (a *Authorizer) ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     a.cfg.CookieKey,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// loginURL is the login path with the original request URL appended as the
// return target. An explicit from_url parameter on the request wins, so the
// target survives a chain of redirects.
func (a *Authorizer) loginURL(c echo.Context) string {
	target := c.QueryParam("from_url")
	if target == "" {
		target = c.Request().RequestURI
	}
	return a.cfg.LoginPath + "?from_url=" + url.QueryEscape(target)
}

func intersects(required, held []string) bool {
	for _, r := range required {
		for _, h := range held {
			if r == h {
				return true
			}
		}
	}
	return false
}
