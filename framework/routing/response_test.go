package routing_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

type product struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	fresh bool
}

func (p *product) WasRecentlyCreated() bool { return p.fresh }

type collection []string

func (c collection) ToArray() any { return map[string]any{"items": []string(c), "count": len(c)} }

type raw string

func (r raw) ToJSON() ([]byte, error) { return []byte(r), nil }

type status int

func (s status) String() string { return "status " + http.StatusText(int(s)) }

type redirectTo string

func (r redirectTo) ToResponse(*gohttp.Request) (*gohttp.Response, error) {
	return gohttp.RedirectTo(string(r)), nil
}

type brokenResponsable struct{}

func (brokenResponsable) ToResponse(*gohttp.Request) (*gohttp.Response, error) {
	return nil, errors.New("cannot render")
}

func TestToResponse(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		wantStatus  int
		wantType    string
		wantContent string
	}{
		{"nil", nil, http.StatusOK, "text/plain; charset=utf-8", ""},
		{"string", "hello", http.StatusOK, "text/plain; charset=utf-8", "hello"},
		{"bytes", []byte("raw"), http.StatusOK, "text/plain; charset=utf-8", "raw"},
		{"number", 42, http.StatusOK, "text/plain; charset=utf-8", "42"},
		{"bool", true, http.StatusOK, "text/plain; charset=utf-8", "true"},
		{"stringer", status(404), http.StatusOK, "text/plain; charset=utf-8", "status Not Found"},
		{"map", map[string]int{"a": 1}, http.StatusOK, "application/json", `{"a":1}`},
		{"slice", []int{1, 2}, http.StatusOK, "application/json", `[1,2]`},
		{"struct", product{ID: 1, Name: "Pen"}, http.StatusOK, "application/json", `{"id":1,"name":"Pen"}`},
		{"model", &product{ID: 2, Name: "Ink"}, http.StatusOK, "application/json", `{"id":2,"name":"Ink"}`},
		{"created model", &product{ID: 3, Name: "Cap", fresh: true}, http.StatusCreated, "application/json", `{"id":3,"name":"Cap"}`},
		{"arrayable", collection{"x"}, http.StatusOK, "application/json", `{"items":["x"],"count":1}`},
		{"jsonable", raw(`{"pre":"encoded"}`), http.StatusOK, "application/json", `{"pre":"encoded"}`},
		{"response", gohttp.Error(http.StatusConflict, "Taken"), http.StatusConflict, "application/json", `{"message":"Taken"}`},
		{"responsable", redirectTo("/login"), http.StatusFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := routing.ToResponse(newRequest(http.MethodGet, "/"), tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantType, res.Header.Get("Content-Type"))
			if tt.wantType == "application/json" {
				assert.JSONEq(t, tt.wantContent, res.Content())
			} else {
				assert.Equal(t, tt.wantContent, res.Content())
			}
		})
	}
}

func TestToResponse_NotModified(t *testing.T) {
	in := gohttp.JSON(http.StatusOK, map[string]any{"a": 1}).WithHeader("ETag", `"abc"`)
	in.Status = http.StatusNotModified

	res, err := routing.ToResponse(newRequest(http.MethodGet, "/"), in)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, res.Status)
	assert.Empty(t, res.Body)
	assert.Empty(t, res.Header.Get("Content-Type"))
	assert.Equal(t, `"abc"`, res.Header.Get("ETag"))
}

func TestToResponse_Head(t *testing.T) {
	res, err := routing.ToResponse(newRequest(http.MethodHead, "/"), map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Empty(t, res.Body)
	assert.Equal(t, "9", res.Header.Get("Content-Length"))
}

func TestToResponse_Errors(t *testing.T) {
	_, err := routing.ToResponse(newRequest(http.MethodGet, "/"), brokenResponsable{})
	assert.EqualError(t, err, "cannot render")

	res, err := routing.ToResponse(newRequest(http.MethodGet, "/"), map[string]any{"bad": func() {}})
	require.Error(t, err)
	assert.Nil(t, res)
}
