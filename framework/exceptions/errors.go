package exceptions

import "net/http"

// AuthenticationError is raised when a request needs an authenticated
// user and has none.
//
//	// Laravel: throw new AuthenticationException('Unauthenticated.', $guards)
type AuthenticationError struct {
	Message    string
	Guards     []string
	RedirectTo string
}

// Unauthenticated builds an AuthenticationError for the given guards.
func Unauthenticated(guards ...string) *AuthenticationError {
	return &AuthenticationError{Message: "Unauthenticated.", Guards: guards}
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "Unauthenticated."
	}
	return e.Message
}

func (e *AuthenticationError) StatusCode() int { return http.StatusUnauthorized }

func (e *AuthenticationError) Headers() http.Header { return http.Header{} }

// redirectPath is where browsers are sent to log in.
func (e *AuthenticationError) redirectPath() string {
	if e.RedirectTo == "" {
		return "/login"
	}
	return e.RedirectTo
}
