package app_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/km-arc/go-laravel-kernel/app"
	"github.com/km-arc/go-laravel-kernel/app/models"
	"github.com/km-arc/go-laravel-kernel/framework/providers"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newClient(t *testing.T) *client {
	t.Helper()
	t.Setenv("APP_DEBUG", "false")
	t.Setenv("THROTTLE_LIMITERS", "api=1000/1")

	application, err := app.Bootstrap(&app.AppServiceProvider{
		Users: models.NewUserStore(models.User{Name: "Ann", Email: "ann@example.com", Password: "secret-pass"}),
		Products: models.NewProductStore(
			models.Product{Name: "Keyboard", Price: 49.9},
		),
	}, "testdata/none.env")
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	application.Instance(providers.LogKey, logger)

	handler, err := application.Kernel().Handler()
	require.NoError(t, err)
	return &client{t: t, handler: handler}
}

func (c *client) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *client) login() {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/login", `{"email":"ann@example.com","password":"secret-pass"}`)
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	c.token = gjson.Get(w.Body.String(), "token").String()
	require.NotEmpty(c.t, c.token)
}

// ── Routes ───────────────────────────────────────────────────────────────────

func TestWelcome(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome", w.Body.String())
}

func TestProducts(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Keyboard", gjson.Get(w.Body.String(), "0.name").String())
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"), "api group throttles")

	w = c.do(http.MethodPost, "/api/products", `{"name":"Mouse","price":19.5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "id").Int())

	w = c.do(http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 19.5, gjson.Get(w.Body.String(), "price").Float())

	w = c.do(http.MethodGet, "/api/products/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found.", gjson.Get(w.Body.String(), "message").String())

	w = c.do(http.MethodGet, "/api/products/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "id is constrained to digits")
}

func TestProducts_Validation(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/products", `{"name":"M"}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.True(t, gjson.Get(body, "errors.name").Exists())
	assert.Equal(t, "The price field is required.", gjson.Get(body, "errors.price.0").String())
}

func TestProducts_Precognition(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/products", `{"name":"Mouse","price":19.5}`, "Precognition", "true")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("Precognition-Success"))

	w = c.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "#").Int(), "precognition never stores")
}

func TestLogin(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/login", `{"email":"ann@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found.", gjson.Get(w.Body.String(), "message").String())

	c.login()
	w = c.do(http.MethodPost, "/api/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User disconnected successfully.", gjson.Get(w.Body.String(), "message").String())

	w = c.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "the revoked token no longer works")
}

func TestUsers_RequireToken(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/api/users", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated.", gjson.Get(w.Body.String(), "message").String())
}

func TestUsers_Resource(t *testing.T) {
	c := newClient(t)
	c.login()

	w := c.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ann@example.com", gjson.Get(w.Body.String(), "0.email").String())
	assert.False(t, gjson.Get(w.Body.String(), "0.password").Exists())

	w = c.do(http.MethodPost, "/api/users", `{"name":"Bob","email":"bob@example.com","password":"hunter2hunter2"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := gjson.Get(w.Body.String(), "id").String()

	w = c.do(http.MethodPut, "/api/users/"+id, `{"name":"Robert"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Robert", gjson.Get(w.Body.String(), "name").String())
	assert.Equal(t, "bob@example.com", gjson.Get(w.Body.String(), "email").String())

	w = c.do(http.MethodPatch, "/api/users/"+id, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = c.do(http.MethodDelete, "/api/users/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Success.", w.Body.String())

	w = c.do(http.MethodGet, "/api/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
