package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/http/validation"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// signupRequest validates itself as soon as it is resolved for an action.
type signupRequest struct{ req *gohttp.Request }

func (s *signupRequest) ValidateResolved() error {
	return validation.Request(s.req, validation.Rules{
		"name":  "required",
		"email": "required|email",
	})
}

type signupController struct{ stored *int }

func (c *signupController) Store(form *signupRequest) string {
	*c.stored++
	return "stored"
}

func precognitionRouter(t *testing.T) (*routing.Router, *int) {
	t.Helper()
	c := container.New()
	require.NoError(t, c.Bind("middleware.precognitive", func(c *container.Container) any {
		return middleware.NewHandlePrecognitiveRequests(c)
	}))
	require.NoError(t, c.Bind(container.TypeKey((*signupRequest)(nil)), func(c *container.Container) any {
		return &signupRequest{req: container.MustResolve[*gohttp.Request](c, routing.RequestKey)}
	}))

	r := routing.NewRouter(c)
	r.AliasMiddleware("precognitive", "middleware.precognitive")

	ran := 0
	r.Post("/users", func(form *signupRequest) string {
		ran++
		return "created"
	}).Middleware("precognitive")
	r.Post("/members", routing.Uses(&signupController{stored: &ran}, "Store")).Middleware("precognitive")
	return r, &ran
}

func postJSON(path, body string, headers map[string]string) *gohttp.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return gohttp.NewRequest(r)
}

func TestPrecognition_NormalRequestRunsAction(t *testing.T) {
	r, ran := precognitionRouter(t)

	res, err := r.Dispatch(postJSON("/users", `{"name":"Ann","email":"ann@example.com"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, "created", res.Content())
	assert.Equal(t, 1, *ran)
	assert.Equal(t, "Precognition", res.Header.Get("Vary"))
	assert.Empty(t, res.Header.Get("Precognition"))
}

func TestPrecognition_ValidRequestSkipsAction(t *testing.T) {
	r, ran := precognitionRouter(t)

	for _, path := range []string{"/users", "/members"} {
		t.Run(path, func(t *testing.T) {
			req := postJSON(path, `{"name":"Ann","email":"ann@example.com"}`, map[string]string{"Precognition": "true"})
			res, err := r.Dispatch(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, res.Status)
			assert.Equal(t, "true", res.Header.Get("Precognition-Success"))
			assert.Equal(t, "true", res.Header.Get("Precognition"))
			assert.Equal(t, "Precognition", res.Header.Get("Vary"))
			assert.True(t, req.IsPrecognitive())
		})
	}
	assert.Zero(t, *ran)
}

func TestPrecognition_InvalidRequestFails(t *testing.T) {
	r, ran := precognitionRouter(t)

	_, err := r.Dispatch(postJSON("/users", `{"name":"Ann","email":"nope"}`, map[string]string{"Precognition": "true"}))
	var verr *validation.Errors
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "The email must be a valid email address.", verr.First("email"))
	assert.Zero(t, *ran)
}

func TestPrecognition_ValidateOnly(t *testing.T) {
	r, _ := precognitionRouter(t)

	res, err := r.Dispatch(postJSON("/users", `{"name":"Ann","email":"nope"}`, map[string]string{
		"Precognition":               "true",
		"Precognition-Validate-Only": "name",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)
}
