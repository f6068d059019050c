package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

func newMiddlewareRig(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "stitchline_session", "session-secret", time.Hour, false)

	r := chi.NewRouter()
	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:         slog.Default(),
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
	})...)
	r.Get("/production/wizard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/production/wizard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return r
}

func establishSession(t *testing.T, rig http.Handler) ([]*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	rig.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/production/wizard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, token)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies, token
}

func TestMiddlewareStackIssuesUsableCSRFToken(t *testing.T) {
	rig := newMiddlewareRig(t)
	cookies, token := establishSession(t, rig)

	// The token handed out on the GET must pass verification on the
	// follow-up mutation with the same session cookie.
	post := httptest.NewRequest(http.MethodPost, "/production/wizard", nil)
	for _, c := range cookies {
		post.AddCookie(c)
	}
	post.Header.Set("X-CSRF-Token", token)

	rec := httptest.NewRecorder()
	rig.ServeHTTP(rec, post)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareStackKeepsTokenStableForSession(t *testing.T) {
	rig := newMiddlewareRig(t)
	cookies, token := establishSession(t, rig)

	again := httptest.NewRequest(http.MethodGet, "/production/wizard", nil)
	for _, c := range cookies {
		again.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	rig.ServeHTTP(rec, again)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, token, rec.Header().Get("X-CSRF-Token"))
}

func TestMiddlewareStackRejectsMissingToken(t *testing.T) {
	rig := newMiddlewareRig(t)
	cookies, _ := establishSession(t, rig)

	post := httptest.NewRequest(http.MethodPost, "/production/wizard", nil)
	for _, c := range cookies {
		post.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	rig.ServeHTTP(rec, post)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareStackRejectsForgedToken(t *testing.T) {
	rig := newMiddlewareRig(t)
	cookies, _ := establishSession(t, rig)

	post := httptest.NewRequest(http.MethodPost, "/production/wizard", nil)
	for _, c := range cookies {
		post.AddCookie(c)
	}
	post.Header.Set("X-CSRF-Token", "not-the-issued-token")
	rec := httptest.NewRecorder()
	rig.ServeHTTP(rec, post)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
