package routing_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newRequest(method, path string) *gohttp.Request {
	return gohttp.NewRequest(httptest.NewRequest(method, path, nil))
}

func noop() string { return "ok" }

// ── Compile / Matches ─────────────────────────────────────────────────────────

func TestRoute_Matches(t *testing.T) {
	tests := []struct {
		uri  string
		path string
		want bool
	}{
		{"/", "/", true},
		{"/", "", true},
		{"/users", "/users", true},
		{"/users", "/users/", true},
		{"/users", "/users/1", false},
		{"/users/{id}", "/users/7", true},
		{"/users/{id}", "/users/", false},
		{"/users/{id}", "/users/a-b_c.d~e", true},
		{"/users/{id}", "/users/7/posts", false},
		{"/users/{id}/posts/{post}", "/users/7/posts/9", true},
		{"/files/{name}.json", "/files/report.json", true},
		{"/posts/{page?}", "/posts", true},
		{"/posts/{page?}", "/posts/3", true},
		{"users", "/users", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri+" "+tt.path, func(t *testing.T) {
			route := routing.NewRoute([]string{http.MethodGet}, tt.uri, noop)
			assert.Equal(t, tt.want, route.Matches(newRequest(http.MethodGet, "/"+trimLeadingSlash(tt.path))))
		})
	}
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

func TestRoute_Where(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/users/{id}", noop).Where("id", "[0-9]+")

	assert.True(t, route.Matches(newRequest(http.MethodGet, "/users/42")))
	assert.False(t, route.Matches(newRequest(http.MethodGet, "/users/abc")))
}

func TestRoute_CompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		route *routing.Route
	}{
		{"duplicate parameter", routing.NewRoute([]string{http.MethodGet}, "/{id}/{id}", noop)},
		{"bad constraint", routing.NewRoute([]string{http.MethodGet}, "/{id}", noop).Where("id", "[")},
		{"capturing constraint", routing.NewRoute([]string{http.MethodGet}, "/{id}", noop).Where("id", "(a|b)")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.Compile()
			require.Error(t, err)
			assert.True(t, errors.Is(err, container.ErrInvalidConfiguration))
			assert.False(t, tt.route.Matches(newRequest(http.MethodGet, "/a")))
		})
	}
}

func TestRoute_CompileIsMemoized(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/users/{id}", noop)
	require.NoError(t, route.Compile())

	// constraints added after compilation have no effect
	route.Where("id", "[0-9]+")
	assert.True(t, route.Matches(newRequest(http.MethodGet, "/users/abc")))

	names, err := route.ParameterNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, names)
}

func TestRoute_GetImpliesHead(t *testing.T) {
	route := routing.NewRoute([]string{"get"}, "/", noop)
	assert.Equal(t, []string{http.MethodGet, http.MethodHead}, route.Methods())

	post := routing.NewRoute([]string{http.MethodPost, http.MethodPost}, "/", noop)
	assert.Equal(t, []string{http.MethodPost}, post.Methods())
}

func TestRoute_Prefix(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/users", noop).Prefix("/api/")
	assert.Equal(t, "/api/users", route.URI())

	root := routing.NewRoute([]string{http.MethodGet}, "/", noop).Prefix("api")
	assert.Equal(t, "/api", root.URI())
}

// ── Bind ──────────────────────────────────────────────────────────────────────

func TestRoute_Bind(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/users/{id}/posts/{post}", noop)

	bound, err := route.Bind(newRequest(http.MethodGet, "/users/7/posts/9"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "7", "post": "9"}, bound.Parameters())

	id, ok := bound.Parameter("id")
	assert.True(t, ok)
	assert.Equal(t, "7", id)
	assert.Equal(t, "/users/{id}/posts/{post}", bound.URI())
	assert.Same(t, route, bound.Route())
}

func TestRoute_Bind_DefaultsAndEmptyCaptures(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/posts/{page?}", noop).
		Defaults("page", "1").
		Defaults("sort", nil)

	bound, err := route.Bind(newRequest(http.MethodGet, "/posts"))
	require.NoError(t, err)
	page, _ := bound.Parameter("page")
	assert.Equal(t, "1", page, "empty capture replaced by the default")

	_, ok := bound.Parameter("sort")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"page": "1"}, bound.ParametersWithoutNulls())

	bound, err = route.Bind(newRequest(http.MethodGet, "/posts/4"))
	require.NoError(t, err)
	page, _ = bound.Parameter("page")
	assert.Equal(t, "4", page)
}

func TestRoute_Bind_OptionalWithoutDefaultIsAbsent(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/posts/{page?}", noop)
	bound, err := route.Bind(newRequest(http.MethodGet, "/posts"))
	require.NoError(t, err)

	_, ok := bound.Parameter("page")
	assert.False(t, ok)
	assert.Empty(t, bound.Parameters())
}

func TestBoundRoute_IsPerRequest(t *testing.T) {
	route := routing.NewRoute([]string{http.MethodGet}, "/users/{id}", noop)

	a, err := route.Bind(newRequest(http.MethodGet, "/users/1"))
	require.NoError(t, err)
	b, err := route.Bind(newRequest(http.MethodGet, "/users/2"))
	require.NoError(t, err)

	a.SetParameter("id", "changed")
	idB, _ := b.Parameter("id")
	assert.Equal(t, "2", idB)
}
