package routing

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/pipeline"
)

// Keys under which each dispatch registers per-request values in its scope.
var (
	RequestKey = container.TypeKey((*gohttp.Request)(nil))
	RouteKey   = container.TypeKey((*BoundRoute)(nil))
)

// DisableMiddlewareKey, bound to true, skips route middleware.
const DisableMiddlewareKey = "middleware.disable"

const tracerName = "github.com/km-arc/go-laravel-kernel/framework/routing"

// Router registers routes and dispatches requests to them.
//
//	// Laravel: Illuminate\Routing\Router
//	r := routing.NewRouter(app)
//	r.Get("/", func() string { return "Welcome" })
//	r.Prefix("/api", func(r *routing.Router) {
//	    r.Middleware("api")
//	    r.Get("/products/{id}", routing.Uses("controllers.products", "Show"))
//	})
type Router struct {
	container *container.Container
	routes    *RouteCollection
	tracer    trace.Tracer

	mu                 sync.RWMutex
	middlewareAliases  map[string]any
	middlewareGroups   map[string][]any
	middlewarePriority []any

	groupStack []groupAttributes
}

type groupAttributes struct {
	prefix     string
	as         string
	middleware []any
}

// NewRouter creates a router resolving middleware and actions from c.
func NewRouter(c *container.Container) *Router {
	return &Router{
		container:         c,
		routes:            NewRouteCollection(),
		tracer:            otel.Tracer(tracerName),
		middlewareAliases: make(map[string]any),
		middlewareGroups:  make(map[string][]any),
	}
}

// Routes returns the route collection.
func (r *Router) Routes() *RouteCollection { return r.routes }

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodGet, http.MethodHead}, uri, action)
}

func (r *Router) Post(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodPost}, uri, action)
}

func (r *Router) Put(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodPut}, uri, action)
}

func (r *Router) Patch(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodPatch}, uri, action)
}

func (r *Router) Delete(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodDelete}, uri, action)
}

func (r *Router) Options(uri string, action any) *Route {
	return r.AddRoute([]string{http.MethodOptions}, uri, action)
}

// Any registers a route for every verb.
func (r *Router) Any(uri string, action any) *Route {
	return r.AddRoute(Verbs, uri, action)
}

// Match registers a route for the given verbs.
//
//	// Laravel: Route::match(['get', 'post'], '/search', $action)
func (r *Router) Match(methods []string, uri string, action any) *Route {
	return r.AddRoute(methods, uri, action)
}

// AddRoute builds a route, applies the enclosing groups' prefix and
// middleware, and adds it to the collection.
func (r *Router) AddRoute(methods []string, uri string, action any) *Route {
	route := NewRoute(methods, r.prefix(uri), action)
	for _, g := range r.groupStack {
		route.name += g.as
		route.middleware = append(route.middleware, g.middleware...)
	}
	return r.routes.Add(route)
}

func (r *Router) prefix(uri string) string {
	p := ""
	for _, g := range r.groupStack {
		p = joinURI(p, g.prefix)
	}
	return joinURI(p, uri)
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group — Laravel: Route::group([], fn)
func (r *Router) Group(fn func(r *Router)) {
	r.withGroup(groupAttributes{}, fn)
}

// Prefix creates a group with a URL prefix — Laravel: Route::prefix('/api')
func (r *Router) Prefix(prefix string, fn func(r *Router)) {
	r.withGroup(groupAttributes{prefix: prefix}, fn)
}

// As creates a group whose route names start with name.
//
//	// Laravel: Route::name('admin.')->group(fn)
//	r.As("admin.", func(r *routing.Router) {
//	    r.Get("/users", list).Name("users") // admin.users
//	})
func (r *Router) As(name string, fn func(r *Router)) {
	r.withGroup(groupAttributes{as: name}, fn)
}

func (r *Router) withGroup(attrs groupAttributes, fn func(r *Router)) {
	r.groupStack = append(r.groupStack, attrs)
	defer func() { r.groupStack = r.groupStack[:len(r.groupStack)-1] }()
	fn(r)
}

// Middleware adds middleware to every route registered after it in the
// current group (or globally outside any group).
//
//	r.Prefix("/api", func(r *routing.Router) {
//	    r.Middleware("api", "auth")
//	    r.Get("/users", ...)
//	})
func (r *Router) Middleware(middleware ...any) {
	if len(r.groupStack) == 0 {
		r.groupStack = append(r.groupStack, groupAttributes{})
	}
	top := &r.groupStack[len(r.groupStack)-1]
	top.middleware = append(top.middleware, middleware...)
}

// ── Resource routes ──────────────────────────────────────────────────────────

// Resource registers standard RESTful routes for a resource controller,
// given as a value or a container abstract.
//
//	GET    /photos           → Index    photos.index
//	POST   /photos           → Store    photos.store
//	GET    /photos/{id}      → Show     photos.show
//	PUT    /photos/{id}      → Update   photos.update
//	PATCH  /photos/{id}      → Update
//	DELETE /photos/{id}      → Destroy  photos.destroy
func (r *Router) Resource(uri string, controller any) []*Route {
	base := strings.ReplaceAll(strings.Trim(uri, "/"), "/", ".")
	member := strings.TrimRight(uri, "/") + "/{id}"
	return []*Route{
		r.Get(uri, Uses(controller, "Index")).Name(base + ".index"),
		r.Post(uri, Uses(controller, "Store")).Name(base + ".store"),
		r.Get(member, Uses(controller, "Show")).Name(base + ".show"),
		r.Match([]string{http.MethodPut, http.MethodPatch}, member, Uses(controller, "Update")).Name(base + ".update"),
		r.Delete(member, Uses(controller, "Destroy")).Name(base + ".destroy"),
	}
}

// ── Middleware tables ────────────────────────────────────────────────────────

// AliasMiddleware registers a short name for a middleware. target is a
// container abstract or a middleware value.
//
//	// Laravel: $router->aliasMiddleware('auth', Authenticate::class)
func (r *Router) AliasMiddleware(name string, target any) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewareAliases[name] = target
	return r
}

// MiddlewareGroup registers a named list of middleware.
func (r *Router) MiddlewareGroup(name string, middleware []any) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewareGroups[name] = slices.Clone(middleware)
	return r
}

// PushMiddlewareToGroup appends middleware to a group unless already there.
func (r *Router) PushMiddlewareToGroup(group string, middleware any) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.middlewareGroups[group]
	key := middlewareKey(middleware)
	if !slices.ContainsFunc(members, func(m any) bool { return key != nil && middlewareKey(m) == key }) {
		r.middlewareGroups[group] = append(members, middleware)
	}
	return r
}

// SetMiddlewarePriority sets middleware that always runs first.
func (r *Router) SetMiddlewarePriority(middleware []any) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewarePriority = slices.Clone(middleware)
	return r
}

// MiddlewareAliases returns a copy of the alias table.
func (r *Router) MiddlewareAliases() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.middlewareAliases))
	for k, v := range r.middlewareAliases {
		out[k] = v
	}
	return out
}

// ── Dispatch ─────────────────────────────────────────────────────────────────

// Dispatch runs req in a fresh scope of the router's container.
func (r *Router) Dispatch(req *gohttp.Request) (*gohttp.Response, error) {
	return r.DispatchWithin(r.container.Scope(), req)
}

// DispatchWithin matches req, registers the request and its bound route in
// scope, runs the route middleware around the action and normalizes the
// result. Errors are returned for the caller to render.
func (r *Router) DispatchWithin(scope *container.Container, req *gohttp.Request) (*gohttp.Response, error) {
	route, err := r.routes.Match(req)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(req.Context(), req.Method()+" "+route.URI(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method()),
			attribute.String("http.route", route.URI()),
		))
	defer span.End()
	req.SetContext(ctx)

	res, err := r.runRoute(scope, route, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	return res, nil
}

func (r *Router) runRoute(scope *container.Container, route *Route, req *gohttp.Request) (*gohttp.Response, error) {
	bound, err := route.Bind(req)
	if err != nil {
		return nil, err
	}
	req.SetRouteResolver(func() gohttp.RouteInfo { return bound })
	exposeToChi(req, bound)

	scope.Instance(RequestKey, req)
	scope.Instance("request", req)
	scope.Instance(RouteKey, bound)
	scope.Instance("route", bound)

	var stages []any
	if !middlewareDisabled(scope) {
		if stages, err = r.GatherRouteMiddleware(route); err != nil {
			return nil, err
		}
	}

	res, err := pipeline.New[*gohttp.Request, *gohttp.Response](scope).
		Send(req).
		Through(stages...).
		Then(func(req *gohttp.Request) (*gohttp.Response, error) {
			v, err := r.runAction(scope, bound)
			if err != nil {
				return nil, err
			}
			return ToResponse(req, v)
		})
	if err != nil {
		return nil, err
	}
	return ToResponse(req, res)
}

// runAction calls the route action through the dispatchers bound in scope.
func (r *Router) runAction(scope *container.Container, bound *BoundRoute) (any, error) {
	a := bound.route.action
	if a.err != nil {
		return nil, a.err
	}

	if a.controller == nil {
		d, err := callableDispatcher(scope)
		if err != nil {
			return nil, err
		}
		return d.Dispatch(bound, a.callable)
	}

	controller := a.controller.Controller
	if abstract, ok := controller.(string); ok {
		c, err := scope.Make(abstract)
		if err != nil {
			return nil, err
		}
		controller = c
	}
	d, err := controllerDispatcher(scope)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(bound, controller, a.controller.Method)
}

func callableDispatcher(scope *container.Container) (CallableDispatcher, error) {
	if !scope.Bound(CallableDispatcherKey) {
		return NewCallableDispatcher(scope), nil
	}
	return container.Resolve[CallableDispatcher](scope, CallableDispatcherKey)
}

func controllerDispatcher(scope *container.Container) (ControllerDispatcher, error) {
	if !scope.Bound(ControllerDispatcherKey) {
		return NewControllerDispatcher(scope), nil
	}
	return container.Resolve[ControllerDispatcher](scope, ControllerDispatcherKey)
}

func middlewareDisabled(scope *container.Container) bool {
	if !scope.Bound(DisableMiddlewareKey) {
		return false
	}
	v, err := scope.Make(DisableMiddlewareKey)
	disabled, _ := v.(bool)
	return err == nil && disabled
}

// exposeToChi copies bound parameters into chi's route context, so
// chi.URLParam works for handlers mounted on a chi mux.
func exposeToChi(req *gohttp.Request, bound *BoundRoute) {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return
	}
	for _, name := range bound.parameterOrder() {
		v, _ := bound.Parameter(name)
		rctx.URLParams.Add(name, fmt.Sprint(v))
	}
}

// ── Listing ──────────────────────────────────────────────────────────────────

// RouteSummary describes a route for route:list.
type RouteSummary struct {
	Methods    []string `json:"methods" yaml:"methods"`
	URI        string   `json:"uri" yaml:"uri"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Action     string   `json:"action" yaml:"action"`
	Middleware []string `json:"middleware" yaml:"middleware"`
}

// List summarizes every route in registration order, with its middleware
// resolved.
func (r *Router) List() ([]RouteSummary, error) {
	routes := r.routes.Get("")
	out := make([]RouteSummary, 0, len(routes))
	for _, route := range routes {
		mw, err := r.GatherRouteMiddleware(route)
		if err != nil {
			return nil, err
		}
		out = append(out, RouteSummary{
			Methods:    route.Methods(),
			URI:        route.URI(),
			Name:       route.GetName(),
			Action:     route.ActionName(),
			Middleware: middlewareNames(mw),
		})
	}
	return out, nil
}
