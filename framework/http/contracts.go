package http

import "net/http"

// Responsable values know how to turn themselves into a response.
//
//	// Laravel: Illuminate\Contracts\Support\Responsable
type Responsable interface {
	ToResponse(req *Request) (*Response, error)
}

// Arrayable values expose a structured form for JSON encoding.
type Arrayable interface {
	ToArray() any
}

// Jsonable values encode themselves.
type Jsonable interface {
	ToJSON() ([]byte, error)
}

// RecentlyCreated is implemented by models that can tell whether they were
// just persisted; such values are answered with 201 Created.
type RecentlyCreated interface {
	WasRecentlyCreated() bool
}

// HTTPError is an error that carries its own status code and headers.
//
//	// Laravel: Symfony\Component\HttpKernel\Exception\HttpExceptionInterface
type HTTPError interface {
	error
	StatusCode() int
	Headers() http.Header
}

// StatusError is the generic HTTPError.
type StatusError struct {
	Status  int
	Message string
	Header  http.Header
}

// Abort builds a StatusError; the message defaults to the status text.
//
//	// Laravel: abort(403)
//	return nil, gohttp.Abort(http.StatusForbidden)
func Abort(status int, message ...string) *StatusError {
	return &StatusError{Status: status, Message: first(message, http.StatusText(status))}
}

func (e *StatusError) Error() string { return e.Message }

func (e *StatusError) StatusCode() int { return e.Status }

func (e *StatusError) Headers() http.Header {
	if e.Header == nil {
		return http.Header{}
	}
	return e.Header
}
