package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response is a fully-formed HTTP response value: a status, headers and a
// body. Handlers and middleware return it; the kernel writes it with Send.
//
//	return gohttp.Success(users), nil
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse builds a response from raw parts. headers may be nil.
func NewResponse(body []byte, status int, headers http.Header) *Response {
	if headers == nil {
		headers = make(http.Header)
	}
	return &Response{Status: status, Header: headers, Body: body}
}

// Text builds a plain-text response.
func Text(status int, body string) *Response {
	res := NewResponse([]byte(body), status, nil)
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return res
}

// NewJSON encodes data as the body of a JSON response.
func NewJSON(status int, data any) (*Response, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	res := NewResponse(bytes.TrimRight(buf.Bytes(), "\n"), status, nil)
	res.Header.Set("Content-Type", "application/json")
	return res, nil
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON builds a JSON response. Values that cannot be encoded become a 500.
//
//	gohttp.JSON(http.StatusOK, map[string]any{"message": "ok"})
func JSON(status int, data any) *Response {
	res, err := NewJSON(status, data)
	if err != nil {
		return ServerError()
	}
	return res
}

// Success builds 200 JSON: {"data": v}
func Success(v any) *Response {
	return JSON(http.StatusOK, envelope{"data": v})
}

// Created builds 201 JSON: {"data": v}
func Created(v any) *Response {
	return JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent builds 204 with no body.
func NoContent() *Response {
	return NewResponse(nil, http.StatusNoContent, nil)
}

// Error builds a JSON error response.
//
//	gohttp.Error(http.StatusNotFound, "Resource not found")
func Error(status int, message string) *Response {
	return JSON(status, envelope{"message": message})
}

// Unauthorized builds 401.
func Unauthorized(message ...string) *Response {
	return Error(http.StatusUnauthorized, first(message, "Unauthenticated."))
}

// Forbidden builds 403.
func Forbidden(message ...string) *Response {
	return Error(http.StatusForbidden, first(message, "This action is unauthorized."))
}

// NotFound builds 404.
func NotFound(message ...string) *Response {
	return Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError builds 500.
func ServerError(message ...string) *Response {
	msg := first(message, "Server Error.")
	// Built by hand so JSON can fall back to it.
	res := NewResponse([]byte(`{"message":`+strconv.Quote(msg)+`}`), http.StatusInternalServerError, nil)
	res.Header.Set("Content-Type", "application/json")
	return res
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect builds an HTTP redirect.
//
//	gohttp.Redirect(http.StatusFound, "/dashboard")
func Redirect(status int, url string) *Response {
	res := NewResponse(nil, status, nil)
	res.Header.Set("Location", url)
	return res
}

// RedirectTo builds a 302 redirect.
func RedirectTo(url string) *Response {
	return Redirect(http.StatusFound, url)
}

// RedirectBack redirects to the Referer header (or fallback URL).
func RedirectBack(req *Request, fallback string) *Response {
	ref := req.Header("Referer")
	if ref == "" {
		ref = fallback
	}
	return RedirectTo(ref)
}

// ── Mutators ─────────────────────────────────────────────────────────────────

// WithHeader sets a header and returns the response for chaining.
func (res *Response) WithHeader(key, value string) *Response {
	res.Header.Set(key, value)
	return res
}

// AddVary adds value to the Vary header unless it is already listed.
//
//	// Laravel: $response->setVary('Origin', false)
func (res *Response) AddVary(value string) *Response {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	current := res.Header.Get("Vary")
	switch {
	case current == "":
		res.Header.Set("Vary", value)
	case !HasToken(current, value):
		res.Header.Set("Vary", current+", "+value)
	}
	return res
}

// Content returns the body as a string.
func (res *Response) Content() string { return string(res.Body) }

// IsEmpty reports whether the status forbids a body.
func (res *Response) IsEmpty() bool {
	return res.Status == http.StatusNoContent || res.Status == http.StatusNotModified
}

// SetNotModified turns the response into a 304 and strips the body along
// with the headers that describe it.
//
//	// Laravel: $response->setNotModified()
func (res *Response) SetNotModified() *Response {
	res.Status = http.StatusNotModified
	res.Body = nil
	for _, h := range []string{"Allow", "Content-Encoding", "Content-Language", "Content-Length", "Content-MD5", "Content-Type", "Last-Modified"} {
		res.Header.Del(h)
	}
	return res
}

// Prepare adjusts the response to the request it answers: a zero status
// becomes 200, informational and empty statuses lose their body, HEAD
// keeps headers only.
//
//	// Laravel: $response->prepare($request)
func (res *Response) Prepare(req *Request) *Response {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	if res.Status == 0 {
		res.Status = http.StatusOK
	}
	if res.Status < http.StatusOK || res.IsEmpty() {
		res.Body = nil
		res.Header.Del("Content-Type")
		res.Header.Del("Content-Length")
		return res
	}
	head := req != nil && req.IsMethod(http.MethodHead)
	// a stripped HEAD response keeps the length of the body it would have had
	if !head || len(res.Body) > 0 || res.Header.Get("Content-Length") == "" {
		res.Header.Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	if head {
		res.Body = nil
	}
	return res
}

// Send writes the response to w.
func (res *Response) Send(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vs := range res.Header {
		dst[k] = append([]string(nil), vs...)
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(res.Body) == 0 {
		return nil
	}
	_, err := w.Write(res.Body)
	return err
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

// HasToken reports whether the comma-separated header list contains token,
// compared case-insensitively.
func HasToken(list, token string) bool {
	for _, part := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
