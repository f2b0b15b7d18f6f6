package routing

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// Verbs lists every method the router knows, in the order alternates are
// probed and reported.
var Verbs = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// defaultSegment matches one URL-safe path segment.
const defaultSegment = `[A-Za-z0-9\-_.~]+`

var placeholderRe = regexp.MustCompile(`\{(\w+)(\?)?\}`)

// Route is a registered URI template with its action and middleware.
//
// Routes are configured fluently right after registration and are read-only
// once requests are being served; the matcher is compiled on first use.
//
//	// Laravel: Route::get('/users/{id}', [UserController::class, 'show'])->name('users.show')->where('id', '[0-9]+')
//	r.Get("/users/{id}", routing.Uses(users, "Show")).Name("users.show").Where("id", "[0-9]+")
type Route struct {
	uri     string
	methods []string
	action  action

	name       string
	middleware []any
	excluded   []any
	wheres     map[string]string
	defaults   map[string]any

	compileOnce    sync.Once
	compiled       *regexp.Regexp
	compileErr     error
	parameterNames []string
}

// NewRoute builds a route. GET routes also answer HEAD.
func NewRoute(methods []string, uri string, handler any) *Route {
	ms := make([]string, 0, len(methods)+1)
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !slices.Contains(ms, m) {
			ms = append(ms, m)
		}
	}
	if slices.Contains(ms, http.MethodGet) && !slices.Contains(ms, http.MethodHead) {
		ms = append(ms, http.MethodHead)
	}
	return &Route{
		uri:      normalizeURI(uri),
		methods:  ms,
		action:   parseAction(handler),
		wheres:   make(map[string]string),
		defaults: make(map[string]any),
	}
}

// ── Fluent configuration ─────────────────────────────────────────────────────

// Name sets the route name. Inside an As group the group's name is
// prepended.
func (r *Route) Name(name string) *Route {
	r.name += name
	return r
}

// Where constrains a parameter with a regular expression.
func (r *Route) Where(param, pattern string) *Route {
	r.wheres[param] = pattern
	return r
}

// Defaults sets the value a parameter takes when it is not captured.
//
//	r.Get("/posts/{page?}", list).Defaults("page", "1")
func (r *Route) Defaults(param string, value any) *Route {
	r.defaults[param] = value
	return r
}

// Prefix prepends prefix to the URI.
func (r *Route) Prefix(prefix string) *Route {
	r.uri = joinURI(prefix, r.uri)
	return r
}

// Middleware appends middleware names or values.
//
//	r.Post("/login", login).Middleware("api", "throttle:5,1")
func (r *Route) Middleware(middleware ...any) *Route {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// WithoutMiddleware removes middleware the route would otherwise inherit
// from its groups or the priority list.
func (r *Route) WithoutMiddleware(middleware ...any) *Route {
	r.excluded = append(r.excluded, middleware...)
	return r
}

// ── Accessors ────────────────────────────────────────────────────────────────

// URI returns the URI template.
func (r *Route) URI() string { return r.uri }

// GetName returns the route name, or "".
func (r *Route) GetName() string { return r.name }

// Methods returns the HTTP methods the route answers.
func (r *Route) Methods() []string { return slices.Clone(r.methods) }

// DeclaredMiddleware returns the middleware named on the route, unresolved.
func (r *Route) DeclaredMiddleware() []any { return slices.Clone(r.middleware) }

// ExcludedMiddleware returns what WithoutMiddleware removed.
func (r *Route) ExcludedMiddleware() []any { return slices.Clone(r.excluded) }

// ActionName describes the action for listings.
func (r *Route) ActionName() string { return r.action.String() }

// ParameterNames returns the placeholder names in declaration order.
func (r *Route) ParameterNames() ([]string, error) {
	if err := r.Compile(); err != nil {
		return nil, err
	}
	return slices.Clone(r.parameterNames), nil
}

// ── Matching ─────────────────────────────────────────────────────────────────

// Compile turns the URI template into a matcher. It runs once; later calls
// return the first result.
//
//	/users/{id}      → ^/users/([A-Za-z0-9\-_.~]+)$
//	/posts/{page?}   → ^/posts(?:/([A-Za-z0-9\-_.~]+))?$
func (r *Route) Compile() error {
	r.compileOnce.Do(func() {
		r.compiled, r.parameterNames, r.compileErr = compileURI(r.uri, r.wheres)
	})
	return r.compileErr
}

func compileURI(uri string, wheres map[string]string) (*regexp.Regexp, []string, error) {
	var (
		b     strings.Builder
		names []string
		last  int
	)
	b.WriteString("^")
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(uri, -1) {
		literal := uri[last:m[0]]
		name := uri[m[2]:m[3]]
		optional := m[4] >= 0
		last = m[1]

		if slices.Contains(names, name) {
			return nil, nil, fmt.Errorf("routing: %w: route [%s] declares parameter [%s] twice",
				container.ErrInvalidConfiguration, uri, name)
		}
		names = append(names, name)

		segment := defaultSegment
		if where, ok := wheres[name]; ok {
			segment = where
		}

		switch {
		case optional && strings.HasSuffix(literal, "/"):
			b.WriteString(regexp.QuoteMeta(strings.TrimSuffix(literal, "/")))
			b.WriteString("(?:/(" + segment + "))?")
		case optional:
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString("(" + segment + ")?")
		default:
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString("(" + segment + ")")
		}
	}
	b.WriteString(regexp.QuoteMeta(uri[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("routing: %w: route [%s]: %w", container.ErrInvalidConfiguration, uri, err)
	}
	if re.NumSubexp() != len(names) {
		return nil, nil, fmt.Errorf("routing: %w: route [%s]: constraints must not contain capture groups",
			container.ErrInvalidConfiguration, uri)
	}
	return re, names, nil
}

// Matches reports whether the request path fits the URI template. The
// method is not checked.
func (r *Route) Matches(req *gohttp.Request) bool {
	if r.Compile() != nil {
		return false
	}
	return r.compiled.MatchString(requestPath(req))
}

// Bind captures the request's path parameters. Empty captures are dropped
// and defaults fill whatever was not captured.
func (r *Route) Bind(req *gohttp.Request) (*BoundRoute, error) {
	if err := r.Compile(); err != nil {
		return nil, err
	}
	bound := &BoundRoute{route: r, parameters: make(map[string]any)}

	if m := r.compiled.FindStringSubmatch(requestPath(req)); m != nil {
		for i, name := range r.parameterNames {
			if v := m[i+1]; v != "" {
				bound.parameters[name] = v
			}
		}
	}

	bound.names = slices.Clone(r.parameterNames)
	extra := make([]string, 0, len(r.defaults))
	for name, v := range r.defaults {
		if _, ok := bound.parameters[name]; !ok {
			bound.parameters[name] = v
		}
		if !slices.Contains(bound.names, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	bound.names = append(bound.names, extra...)
	return bound, nil
}

// ── Bound route ──────────────────────────────────────────────────────────────

// BoundRoute is a route together with the parameters of one request.
//
//	// Laravel: $request->route('id')
//	id, _ := req.Route().Parameter("id")
type BoundRoute struct {
	route      *Route
	parameters map[string]any
	names      []string
}

// Route returns the shared route definition.
func (b *BoundRoute) Route() *Route { return b.route }

func (b *BoundRoute) URI() string     { return b.route.uri }
func (b *BoundRoute) GetName() string { return b.route.name }

// Parameter returns a bound parameter.
func (b *BoundRoute) Parameter(name string) (any, bool) {
	v, ok := b.parameters[name]
	return v, ok
}

// SetParameter overrides a parameter for the rest of the request.
func (b *BoundRoute) SetParameter(name string, value any) {
	if _, ok := b.parameters[name]; !ok && !slices.Contains(b.names, name) {
		b.names = append(b.names, name)
	}
	b.parameters[name] = value
}

// Parameters returns a copy of every bound parameter.
func (b *BoundRoute) Parameters() map[string]any {
	out := make(map[string]any, len(b.parameters))
	for k, v := range b.parameters {
		out[k] = v
	}
	return out
}

// ParametersWithoutNulls drops parameters whose value is nil.
func (b *BoundRoute) ParametersWithoutNulls() map[string]any {
	out := make(map[string]any, len(b.parameters))
	for k, v := range b.parameters {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// parameterOrder returns the names of non-nil parameters, placeholders first.
func (b *BoundRoute) parameterOrder() []string {
	out := make([]string, 0, len(b.names))
	for _, name := range b.names {
		if v, ok := b.parameters[name]; ok && v != nil {
			out = append(out, name)
		}
	}
	return out
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// requestPath strips the trailing slash; the empty path becomes "/".
func requestPath(req *gohttp.Request) string {
	p := strings.TrimRight(req.Path(), "/")
	if p == "" {
		return "/"
	}
	return p
}

func normalizeURI(uri string) string {
	uri = strings.Trim(uri, "/")
	return "/" + uri
}

func joinURI(prefix, uri string) string {
	prefix = strings.Trim(prefix, "/")
	uri = strings.Trim(uri, "/")
	switch {
	case prefix == "":
		return "/" + uri
	case uri == "":
		return "/" + prefix
	}
	return "/" + prefix + "/" + uri
}
