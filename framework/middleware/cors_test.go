package middleware_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
)

func corsRequest(method, path string, headers map[string]string) *gohttp.Request {
	req := newRequest(method, path)
	for k, v := range headers {
		req.Raw().Header.Set(k, v)
	}
	return req
}

func openPolicy() config.CORSConfig {
	return config.CORSConfig{
		Paths:          []string{"api/*"},
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-RateLimit-Remaining"},
		MaxAge:         600,
	}
}

func TestHandleCors_Preflight(t *testing.T) {
	cors := middleware.NewHandleCors(openPolicy())
	called := false
	req := corsRequest(http.MethodOptions, "/api/users", map[string]string{
		"Origin":                         "https://app.test",
		"Access-Control-Request-Method":  "put",
		"Access-Control-Request-Headers": "Authorization, Content-Type",
	})

	res, err := cors.Handle(req, func(req *gohttp.Request) (*gohttp.Response, error) {
		called = true
		return ok(req)
	})
	require.NoError(t, err)
	assert.False(t, called, "preflight requests never reach the router")
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "PUT", res.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type", res.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", res.Header.Get("Access-Control-Max-Age"))
	assert.Equal(t, "Access-Control-Request-Headers, Access-Control-Request-Method", res.Header.Get("Vary"))
}

func TestHandleCors_ActualRequest(t *testing.T) {
	cors := middleware.NewHandleCors(openPolicy())
	req := corsRequest(http.MethodGet, "/api/users", map[string]string{"Origin": "https://app.test"})

	res, err := cors.Handle(req, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content())
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-RateLimit-Remaining", res.Header.Get("Access-Control-Expose-Headers"))
}

func TestHandleCors_RestrictedOrigins(t *testing.T) {
	policy := openPolicy()
	policy.AllowedOrigins = []string{"https://app.test"}
	policy.SupportsCredentials = true
	cors := middleware.NewHandleCors(policy)

	res, err := cors.Handle(corsRequest(http.MethodGet, "/api/users", map[string]string{"Origin": "https://app.test"}), ok)
	require.NoError(t, err)
	assert.Equal(t, "https://app.test", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", res.Header.Get("Vary"))

	res, err = cors.Handle(corsRequest(http.MethodGet, "/api/users", map[string]string{"Origin": "https://evil.test"}), ok)
	require.NoError(t, err)
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestHandleCors_OtherPaths(t *testing.T) {
	cors := middleware.NewHandleCors(openPolicy())

	res, err := cors.Handle(corsRequest(http.MethodGet, "/dashboard", map[string]string{"Origin": "https://app.test"}), ok)
	require.NoError(t, err)
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}
