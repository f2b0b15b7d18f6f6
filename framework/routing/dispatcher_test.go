package routing_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

type greeter struct{ greeting string }

func TestResolveParameters(t *testing.T) {
	c := container.New()
	c.Instance(container.TypeKey((*greeter)(nil)), &greeter{greeting: "hi"})

	route := routing.NewRoute([]string{http.MethodGet}, "/users/{id}/{slug?}", noop).
		Defaults("slug", nil)
	bound, err := route.Bind(newRequest(http.MethodGet, "/users/7"))
	require.NoError(t, err)

	fn := container.Fn(func(g *greeter, slug string, id int) string { return g.greeting }, "", "slug").
		Default("slug", "none")

	args, err := routing.ResolveParameters(c, fn, bound)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, "hi", args[0].(*greeter).greeting)
	assert.Equal(t, "none", args[1], "nil route parameters fall back to the default")
	assert.Equal(t, "7", args[2], "unnamed scalars take the remaining parameters in order")
}

func TestControllerCallable(t *testing.T) {
	fn, err := routing.ControllerCallable(&photoController{}, "index")
	require.NoError(t, err)
	out, err := fn.Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, out)

	fn, err = routing.ControllerCallable(&namedController{}, "Show")
	require.NoError(t, err)
	assert.Equal(t, "kind", fn.Params()[0].Name, "Actions metadata wins over the method set")

	_, err = routing.ControllerCallable(nil, "Show")
	assert.ErrorIs(t, err, container.ErrInvalidConfiguration)
}

func TestDefaultDispatchers(t *testing.T) {
	c := container.New()
	route := routing.NewRoute([]string{http.MethodGet}, "/x/{id}", noop)
	bound, err := route.Bind(newRequest(http.MethodGet, "/x/3"))
	require.NoError(t, err)

	out, err := routing.NewCallableDispatcher(c).Dispatch(bound, container.Fn(func(id int) int { return id * 2 }))
	require.NoError(t, err)
	assert.Equal(t, 6, out)

	out, err = routing.NewControllerDispatcher(c).Dispatch(bound, &photoController{}, "Update")
	require.NoError(t, err)
	assert.Equal(t, "updated 3", out)
}

type signupForm struct{ email string }

func (f *signupForm) ValidateResolved() error {
	if f.email == "" {
		return errors.New("email missing")
	}
	return nil
}

func TestResolveParameters_ValidatesWhenResolved(t *testing.T) {
	c := container.New()
	route := routing.NewRoute([]string{http.MethodPost}, "/signup", noop)
	bound, err := route.Bind(newRequest(http.MethodPost, "/signup"))
	require.NoError(t, err)
	fn := container.Fn(func(f *signupForm) string { return f.email })

	c.Instance(container.TypeKey((*signupForm)(nil)), &signupForm{})
	_, err = routing.ResolveParameters(c, fn, bound)
	assert.EqualError(t, err, "email missing")

	c.Instance(container.TypeKey((*signupForm)(nil)), &signupForm{email: "a@b.c"})
	args, err := routing.ResolveParameters(c, fn, bound)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", args[0].(*signupForm).email)
}
