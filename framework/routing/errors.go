package routing

import (
	"fmt"
	"net/http"
	"strings"
)

// NotFoundError is returned when no route matches the path on any verb.
//
//	// Laravel: Symfony\Component\HttpKernel\Exception\NotFoundHttpException
type NotFoundError struct {
	Method string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("The route %s could not be found.", strings.TrimPrefix(e.Path, "/"))
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

func (e *NotFoundError) Headers() http.Header { return http.Header{} }

// MethodNotAllowedError is returned when the path matches a route under
// other verbs only. Allowed lists those verbs.
type MethodNotAllowedError struct {
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("The %s method is not supported for this route. Supported methods: %s.",
		e.Method, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) StatusCode() int { return http.StatusMethodNotAllowed }

// Headers carries the Allow header.
func (e *MethodNotAllowedError) Headers() http.Header {
	return http.Header{"Allow": {strings.Join(e.Allowed, ", ")}}
}
