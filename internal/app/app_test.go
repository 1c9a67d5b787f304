package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/yaap/internal/authz"
	"github.com/stolasapp/yaap/internal/config"
	"github.com/stolasapp/yaap/internal/directory"
	"github.com/stolasapp/yaap/internal/session"
	"github.com/stolasapp/yaap/internal/storage"
)

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) *echo.Echo {
	t.Helper()

	cfg := config.Default()
	cfg.CookieSecret = "sneaky"
	cfg.AllowRegistration = true
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewDB(t.Context(), slog.Default(), filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	users := directory.New(store)
	_, err = users.CreateUser(t.Context(), "tester", "123abc", "t@example.net", "testers")
	require.NoError(t, err)

	sessions := session.NewManager(store, time.Hour)
	auth := authz.New(sessions, authz.Config{
		CookieKey:    cfg.CookieKey,
		CookieSecret: cfg.CookieSecret,
		LoginPath:    cfg.Routes.Login,
	})
	return New(cfg, slog.Default(), auth, sessions, users)
}

func get(t *testing.T, e *echo.Echo, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, e *echo.Echo, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "yaap" {
			return cookie
		}
	}
	t.Fatal("no session cookie on response")
	return nil
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, nil)

	rec := get(t, e, "/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="username"`)

	t.Run("wrong credentials re-render the form", func(t *testing.T) {
		rec := postForm(t, e, "/login/", url.Values{
			"username": {"tester"}, "password": {"wrong"},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid username or password")
		assert.Empty(t, rec.Result().Cookies())
	})

	rec = postForm(t, e, "/login/", url.Values{
		"username": {"tester"}, "password": {"123abc"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/user/", rec.Header().Get(echo.HeaderLocation))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	t.Run("cookie unlocks the profile", func(t *testing.T) {
		rec := get(t, e, "/user/", cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tester")
		assert.Contains(t, rec.Body.String(), "testers")
	})

	t.Run("login form greets an authenticated visitor", func(t *testing.T) {
		rec := get(t, e, "/login/", cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "already logged in as &#39;tester&#39;")
	})
}

func TestLoginReturnTarget(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, nil)

	creds := url.Values{"username": {"tester"}, "password": {"123abc"}}

	rec := postForm(t, e, "/login/?from_url=%2Fdeeper%2F", creds)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/deeper/", rec.Header().Get(echo.HeaderLocation))

	t.Run("off-site targets fall back to the profile", func(t *testing.T) {
		for _, target := range []string{
			"https://evil.example.net/",
			"//evil.example.net/",
			"evil",
		} {
			rec := postForm(t, e, "/login/?from_url="+url.QueryEscape(target), creds)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/user/", rec.Header().Get(echo.HeaderLocation), target)
		}
	})
}

func TestLogoutFlow(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, nil)

	rec := postForm(t, e, "/login/", url.Values{
		"username": {"tester"}, "password": {"123abc"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = postForm(t, e, "/logout/", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged out successfully")
	cleared := sessionCookie(t, rec)
	assert.Equal(t, -1, cleared.MaxAge)

	t.Run("session is gone server-side", func(t *testing.T) {
		rec := get(t, e, "/user/", cookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "/login/")
	})

	t.Run("anonymous logout is harmless", func(t *testing.T) {
		rec := postForm(t, e, "/logout/", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRegistration(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, nil)

	rec := get(t, e, "/register/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="email"`)

	rec = postForm(t, e, "/register/", url.Values{
		"username": {"fresh"},
		"password": {"letmein"},
		"email":    {"fresh@example.net"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec) // registering logs the user in

	rec = get(t, e, "/user/", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fresh")

	t.Run("duplicate username is rejected", func(t *testing.T) {
		rec := postForm(t, e, "/register/", url.Values{
			"username": {"tester"},
			"password": {"other"},
			"email":    {"other@example.net"},
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already taken")
	})
}

func TestRegistrationDisabled(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, func(cfg *config.Config) {
		cfg.AllowRegistration = false
	})

	rec := get(t, e, "/register/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevModeDemoRoutes(t *testing.T) {
	t.Parallel()
	e := newTestApp(t, func(cfg *config.Config) {
		cfg.DevMode = true
	})

	rec := get(t, e, "/")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, e, "/required/")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/?from_url=%2Frequired%2F", rec.Header().Get(echo.HeaderLocation))

	login := postForm(t, e, "/login/", url.Values{
		"username": {"tester"}, "password": {"123abc"},
	})
	require.Equal(t, http.StatusFound, login.Code)
	cookie := sessionCookie(t, login)

	rec = get(t, e, "/required/", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hey tester!")

	// tester is not in the special group
	rec = get(t, e, "/special/", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
