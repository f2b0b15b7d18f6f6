package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
)

const maxMemory = 32 << 20 // 32 MB

// RouteInfo is what a request knows about the route it was matched to.
// It is implemented by the router's bound route.
type RouteInfo interface {
	URI() string
	GetName() string
	Parameter(name string) (any, bool)
}

// Request wraps *http.Request with Laravel-style helpers.
//
// Besides the raw request it carries the per-request state Laravel keeps on
// its Request object: the matched route, the authenticated user and a bag
// of attributes set by middleware.
type Request struct {
	raw  *http.Request
	body []byte
	read bool

	route      func() RouteInfo
	user       func() any
	attributes map[string]any
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r, attributes: make(map[string]any)}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Context returns the request context.
func (req *Request) Context() context.Context { return req.raw.Context() }

// SetContext replaces the request context, keeping every other field.
func (req *Request) SetContext(ctx context.Context) {
	req.raw = req.raw.WithContext(ctx)
}

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes the request body into v.
// Supports JSON and application/x-www-form-urlencoded / multipart.
// JSON fields map via `json:"name"`, form fields via `form:"name"`.
func (req *Request) Bind(v any) error {
	ct := req.ContentType()

	switch {
	case strings.Contains(ct, "application/json"):
		return req.bindJSON(v)
	case strings.Contains(ct, "multipart/form-data"):
		if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
			return err
		}
		return bindForm(req.raw.MultipartForm.Value, v)
	default:
		if err := req.raw.ParseForm(); err != nil {
			return err
		}
		return bindForm(map[string][]string(req.raw.PostForm), v)
	}
}

func (req *Request) bindJSON(v any) error {
	body, err := req.payload()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, v)
}

// payload reads the body once so it can be bound and inspected repeatedly.
func (req *Request) payload() ([]byte, error) {
	if req.read {
		return req.body, nil
	}
	if req.raw.Body == nil {
		req.read = true
		return nil, nil
	}
	defer req.raw.Body.Close()
	body, err := io.ReadAll(req.raw.Body)
	if err != nil {
		return nil, err
	}
	req.body, req.read = body, true
	return body, nil
}

// bindForm maps form values onto a struct through a JSON round-trip.
func bindForm(values map[string][]string, v any) error {
	m := make(map[string]any, len(values))
	for k, vals := range values {
		if len(vals) == 1 {
			m[k] = vals[0]
		} else {
			m[k] = vals
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Input returns a single input value (query string OR post body).
func (req *Request) Input(key string, fallback ...string) string {
	var v string
	if req.IsJSON() {
		v = req.All()[key]
	} else {
		_ = req.raw.ParseForm()
		v = req.raw.FormValue(key)
	}
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// All returns all input as a flat map (query + post). Top-level members of
// a JSON body are included, nested values in their raw JSON form.
func (req *Request) All() map[string]string {
	out := make(map[string]string)
	if req.IsJSON() {
		for k, v := range req.raw.URL.Query() {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		if body, err := req.payload(); err == nil && gjson.ValidBytes(body) {
			gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
				out[key.String()] = value.String()
				return true
			})
		}
		return out
	}
	_ = req.raw.ParseForm()
	for k, v := range req.raw.Form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Has returns true if the key is present and non-empty.
func (req *Request) Has(key string) bool {
	return req.Input(key) != ""
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// BearerToken extracts the token from Authorization: Bearer <token>.
func (req *Request) BearerToken() string {
	auth := req.raw.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// IP returns the client IP (respects RealIP middleware).
func (req *Request) IP() string {
	return req.raw.RemoteAddr
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// IsMethod reports whether the request uses method (case-insensitive).
func (req *Request) IsMethod(method string) bool {
	return strings.EqualFold(req.raw.Method, method)
}

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// IsJSON returns true when the request body is JSON.
func (req *Request) IsJSON() bool {
	return strings.Contains(req.ContentType(), "/json") || strings.Contains(req.ContentType(), "+json")
}

// WantsJSON returns true when the client accepts a JSON response.
func (req *Request) WantsJSON() bool {
	accept := req.raw.Header.Get("Accept")
	return strings.Contains(accept, "/json") || strings.Contains(accept, "+json")
}

// Ajax returns true for XMLHttpRequest calls.
func (req *Request) Ajax() bool {
	return req.raw.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// ExpectsJSON decides whether errors should be rendered as JSON.
//
//	// Laravel: $request->expectsJson()
func (req *Request) ExpectsJSON() bool {
	if req.Ajax() && req.raw.Header.Get("X-PJAX") == "" {
		return true
	}
	return req.WantsJSON()
}

// EnableMethodOverride lets HTML forms tunnel PUT/PATCH/DELETE through POST
// using the _method field or the X-HTTP-Method-Override header.
//
//	// Laravel: $request->enableHttpMethodParameterOverride()
func (req *Request) EnableMethodOverride() {
	if req.raw.Method != http.MethodPost {
		return
	}
	method := req.raw.Header.Get("X-HTTP-Method-Override")
	if method == "" {
		_ = req.raw.ParseForm()
		method = req.raw.PostForm.Get("_method")
	}
	switch method = strings.ToUpper(method); method {
	case http.MethodPut, http.MethodPatch, http.MethodDelete:
		req.raw.Method = method
	}
}

// ── Route & user ─────────────────────────────────────────────────────────────

// SetRouteResolver registers how to find the route this request matched.
func (req *Request) SetRouteResolver(fn func() RouteInfo) { req.route = fn }

// Route returns the matched route, or nil before routing.
//
//	// Laravel: $request->route()
func (req *Request) Route() RouteInfo {
	if req.route == nil {
		return nil
	}
	return req.route()
}

// RouteParam returns a bound route parameter. Falls back to chi's URL
// params for handlers mounted directly on a chi mux.
func (req *Request) RouteParam(key string) string {
	if route := req.Route(); route != nil {
		if v, ok := route.Parameter(key); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return chi.URLParam(req.raw, key)
}

// SetUserResolver registers how to find the authenticated user.
func (req *Request) SetUserResolver(fn func() any) { req.user = fn }

// User returns the authenticated user, or nil.
func (req *Request) User() any {
	if req.user == nil {
		return nil
	}
	return req.user()
}

// ── Attributes ───────────────────────────────────────────────────────────────

// Attribute returns a value set by middleware.
func (req *Request) Attribute(key string) (any, bool) {
	v, ok := req.attributes[key]
	return v, ok
}

// SetAttribute stores a per-request value.
func (req *Request) SetAttribute(key string, value any) {
	if req.attributes == nil {
		req.attributes = make(map[string]any)
	}
	req.attributes[key] = value
}

// IsAttemptingPrecognition reports whether the client asked for a
// precognitive (validate-only) request.
func (req *Request) IsAttemptingPrecognition() bool {
	return req.raw.Header.Get("Precognition") == "true"
}

// IsPrecognitive reports whether precognition has been enabled for this
// request by middleware.
func (req *Request) IsPrecognitive() bool {
	v, _ := req.attributes["precognitive"].(bool)
	return v
}

// ── File uploads ─────────────────────────────────────────────────────────────

// File returns an uploaded file by field name.
func (req *Request) File(key string) (*multipart.FileHeader, error) {
	if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}
	_, fh, err := req.raw.FormFile(key)
	return fh, err
}

// Files returns all uploaded files for a field.
func (req *Request) Files(key string) ([]*multipart.FileHeader, error) {
	if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}
	if req.raw.MultipartForm == nil {
		return nil, errors.New("no multipart form")
	}
	return req.raw.MultipartForm.File[key], nil
}
