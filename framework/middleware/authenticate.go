package middleware

import (
	"context"
	"errors"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/exceptions"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// UserKey is where Authenticate registers the user in the request scope.
const UserKey = "auth.user"

// ErrInvalidToken is returned by verifiers that do not recognise a token.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier maps a bearer token to the user it belongs to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (any, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (any, error)

func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (any, error) {
	return f(ctx, token)
}

// Authenticate requires a valid bearer token and makes the user it
// belongs to available through req.User() and, when built for a request
// scope, as UserKey in that scope. Parameters name the guards reported in
// the AuthenticationError.
//
//	// Laravel: Illuminate\Auth\Middleware\Authenticate
//	r.Get("/profile", showProfile).Middleware("auth")
type Authenticate struct {
	verifier TokenVerifier
	scope    *container.Container
}

// NewAuthenticate creates the middleware around verifier. scope may be nil.
func NewAuthenticate(verifier TokenVerifier, scope *container.Container) *Authenticate {
	return &Authenticate{verifier: verifier, scope: scope}
}

func (a *Authenticate) Handle(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
	return a.HandleWith(req, next, nil)
}

func (a *Authenticate) HandleWith(req *gohttp.Request, next routing.Next, guards []string) (*gohttp.Response, error) {
	if req.User() != nil {
		return next(req)
	}

	token := req.BearerToken()
	if token == "" {
		return nil, exceptions.Unauthenticated(guards...)
	}
	user, err := a.verifier.Verify(req.Context(), token)
	if err != nil || user == nil {
		return nil, exceptions.Unauthenticated(guards...)
	}

	req.SetUserResolver(func() any { return user })
	if a.scope != nil {
		a.scope.Instance(UserKey, user)
	}
	return next(req)
}
