package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/km-arc/go-laravel-kernel/framework/app"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
	"github.com/km-arc/go-laravel-kernel/framework/providers"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newApp(t *testing.T, env map[string]string) (*app.Application, *logtest.Hook) {
	t.Helper()
	t.Setenv("APP_DEBUG", "false")
	for k, v := range env {
		t.Setenv(k, v)
	}

	a, err := app.New("testdata/testing.env")
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	a.Instance(providers.LogKey, logger)
	require.NoError(t, a.Boot())
	return a, hook
}

func serve(t *testing.T, a *app.Application, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	handler, err := a.Kernel().Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

// ── Handle ───────────────────────────────────────────────────────────────────

func TestKernel_DispatchesToRouter(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/", func() string { return "Welcome" })

	w := serve(t, a, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome", w.Body.String())
	assert.Equal(t, "Precognition", w.Header().Get("Vary"), "priority middleware runs on every route")
}

func TestKernel_RouteParameters(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/users/{id}", func(id int) map[string]any {
		return map[string]any{"id": id}
	})

	w := serve(t, a, jsonRequest(http.MethodGet, "/users/42"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), gjson.Get(w.Body.String(), "id").Int())
}

func TestKernel_RendersNotFound(t *testing.T) {
	a, _ := newApp(t, nil)
	assert.True(t, a.Providers.Deferred(providers.ExceptionHandlerKey))

	w := serve(t, a, jsonRequest(http.MethodGet, "/missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "The route missing could not be found.", gjson.Get(w.Body.String(), "message").String())
	assert.False(t, a.Providers.Deferred(providers.ExceptionHandlerKey), "handler provider loads on first error")
}

func TestKernel_RendersMethodNotAllowed(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/", func() string { return "Welcome" })

	w := serve(t, a, jsonRequest(http.MethodDelete, "/"))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Header().Get("Allow"), "GET")
}

func TestKernel_RecoversPanics(t *testing.T) {
	a, hook := newApp(t, nil)
	a.Router().Get("/boom", func() string { panic("boom") })

	w := serve(t, a, jsonRequest(http.MethodGet, "/boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := w.Body.String()
	assert.Equal(t, "Server Error", gjson.Get(body, "message").String())
	id := gjson.Get(body, "error_id").String()
	assert.NotEmpty(t, id)

	var reported bool
	for _, e := range hook.AllEntries() {
		if e.Data["error_id"] == id {
			reported = true
		}
	}
	assert.True(t, reported, "the rendered error id matches the reported one")
}

func TestKernel_ActionErrorSeenByGlobalMiddleware(t *testing.T) {
	a, hook := newApp(t, nil)
	a.Router().Get("/fail", func() (string, error) { return "", errors.New("database down") })

	w := serve(t, a, jsonRequest(http.MethodGet, "/fail"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database down")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "request failed" && e.Data["status"] == http.StatusInternalServerError {
			logged = true
		}
	}
	assert.True(t, logged, "the request log sees the rendered status")
}

func TestKernel_MethodOverride(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Delete("/posts/{id}", func(id string) string { return "deleted " + id })

	form := url.Values{"_method": {"DELETE"}}
	req := httptest.NewRequest(http.MethodPost, "/posts/7", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(t, a, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted 7", w.Body.String())
}

func TestKernel_PushMiddleware(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/", func() string { return "Welcome" })
	a.Kernel().PushMiddleware(routing.MiddlewareFunc(func(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
		res, err := next(req)
		if res != nil {
			res.Header.Set("X-Powered-By", "kernel")
		}
		return res, err
	}))

	w := serve(t, a, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "kernel", w.Header().Get("X-Powered-By"))
	assert.True(t, a.Kernel().HasMiddleware(providers.CorsMiddlewareKey))
}

// ── Middleware wiring ────────────────────────────────────────────────────────

func TestKernel_ApiGroupThrottles(t *testing.T) {
	a, _ := newApp(t, map[string]string{"THROTTLE_LIMITERS": "api=2/1"})
	a.Router().Prefix("/api", func(r *routing.Router) {
		r.Middleware("api")
		r.Get("/ping", func() string { return "pong" })
	})

	for i := 0; i < 2; i++ {
		w := serve(t, a, jsonRequest(http.MethodGet, "/api/ping"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(t, a, jsonRequest(http.MethodGet, "/api/ping"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "Too Many Attempts.", gjson.Get(w.Body.String(), "message").String())
}

func TestKernel_Authenticate(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Instance(providers.TokenVerifierKey, middleware.TokenVerifierFunc(func(_ context.Context, token string) (any, error) {
		if token != "secret" {
			return nil, middleware.ErrInvalidToken
		}
		return "alice", nil
	}))
	a.Router().Get("/profile", func(req *gohttp.Request) map[string]any {
		return map[string]any{"user": req.User()}
	}).Middleware("auth")

	w := serve(t, a, jsonRequest(http.MethodGet, "/profile"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated.", gjson.Get(w.Body.String(), "message").String())

	w = serve(t, a, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	req := jsonRequest(http.MethodGet, "/profile")
	req.Header.Set("Authorization", "Bearer secret")
	w = serve(t, a, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", gjson.Get(w.Body.String(), "user").String())
}

func TestKernel_AuthWithoutVerifier(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/profile", func() string { return "me" }).Middleware("auth")

	w := serve(t, a, jsonRequest(http.MethodGet, "/profile"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestKernel_DisableMiddleware(t *testing.T) {
	a, _ := newApp(t, map[string]string{"HTTP_DISABLE_MIDDLEWARE": "true"})
	a.Router().Get("/profile", func() string { return "me" }).Middleware("auth")

	w := serve(t, a, jsonRequest(http.MethodGet, "/profile"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "me", w.Body.String())
	assert.Empty(t, w.Header().Get("Vary"), "priority middleware is route middleware")
}

func TestKernel_DisableMiddlewareKeepsGlobal(t *testing.T) {
	a, hook := newApp(t, map[string]string{"HTTP_DISABLE_MIDDLEWARE": "true"})
	a.Router().Get("/", func() string { return "Welcome" })

	serve(t, a, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request handled", hook.LastEntry().Message)
}

func TestKernel_CorsPreflight(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Post("/api/users", func() string { return "created" })

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "https://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := serve(t, a, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestKernel_MetricsEndpoint(t *testing.T) {
	a, _ := newApp(t, nil)
	a.Router().Get("/", func() string { return "Welcome" })

	serve(t, a, httptest.NewRequest(http.MethodGet, "/", nil))
	w := serve(t, a, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `laravel_http_requests_total{method="GET",route="/",status="200"} 1`)
}

func TestKernel_MetricsDisabled(t *testing.T) {
	a, _ := newApp(t, map[string]string{"METRICS_ENABLED": "false"})

	w := serve(t, a, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, a.Kernel().HasMiddleware(providers.MetricsMiddlewareKey))
}
