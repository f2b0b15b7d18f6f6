package app

import (
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/exceptions"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/pipeline"
	"github.com/km-arc/go-laravel-kernel/framework/providers"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Kernel is the HTTP kernel: it sends every request through the global
// middleware and hands it to the router.
//
// The middleware tables mirror app/Http/Kernel.php and are synced into the
// router the first time a request is handled.
//
//	// Laravel: $response = $kernel->handle($request = Request::capture());
type Kernel struct {
	app    *Application
	router *routing.Router
	cfg    *config.Config

	mu       sync.Mutex
	synced   bool
	global   []any
	groups   map[string][]any
	aliases  map[string]any
	priority []any
}

// NewKernel creates the kernel with the framework's default middleware.
//
// Global:   middleware.log, middleware.metrics (when enabled), middleware.cors
// Groups:   api → throttle:api
// Aliases:  auth, securize, throttle, precognitive
// Priority: precognitive
func NewKernel(a *Application) *Kernel {
	cfg := a.Config()

	global := []any{providers.LogMiddlewareKey}
	if cfg.HTTP.Metrics {
		global = append(global, providers.MetricsMiddlewareKey)
	}
	global = append(global, providers.CorsMiddlewareKey)

	return &Kernel{
		app:    a,
		router: a.Router(),
		cfg:    cfg,
		global: global,
		groups: map[string][]any{
			"api": {"throttle:api"},
		},
		aliases: map[string]any{
			"auth":         providers.AuthMiddlewareKey,
			"securize":     providers.AuthMiddlewareKey,
			"throttle":     providers.ThrottleMiddlewareKey,
			"precognitive": providers.PrecognitionMiddlewareKey,
		},
		priority: []any{"precognitive"},
	}
}

// Router returns the router requests are dispatched to.
func (k *Kernel) Router() *routing.Router { return k.router }

// ── Middleware tables ────────────────────────────────────────────────────────

// PrependMiddleware adds global middleware to the front of the stack.
func (k *Kernel) PrependMiddleware(middleware any) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !containsMiddleware(k.global, middleware) {
		k.global = append([]any{middleware}, k.global...)
	}
	return k
}

// PushMiddleware adds global middleware to the end of the stack.
//
//	// Laravel: $kernel->pushMiddleware(TrustProxies::class)
func (k *Kernel) PushMiddleware(middleware any) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !containsMiddleware(k.global, middleware) {
		k.global = append(k.global, middleware)
	}
	return k
}

// HasMiddleware reports whether middleware is in the global stack.
func (k *Kernel) HasMiddleware(middleware any) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return containsMiddleware(k.global, middleware)
}

// Middleware returns a copy of the global stack.
func (k *Kernel) Middleware() []any {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.global)
}

// AppendMiddlewareToGroup adds middleware to the end of a group.
func (k *Kernel) AppendMiddlewareToGroup(group string, middleware any) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !containsMiddleware(k.groups[group], middleware) {
		k.groups[group] = append(k.groups[group], middleware)
	}
	k.synced = false
	return k
}

// AliasMiddleware registers a short name for middleware.
func (k *Kernel) AliasMiddleware(name string, target any) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.aliases[name] = target
	k.synced = false
	return k
}

// SetMiddlewarePriority replaces the middleware that runs first on every
// route.
func (k *Kernel) SetMiddlewarePriority(middleware []any) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.priority = slices.Clone(middleware)
	k.synced = false
	return k
}

// containsMiddleware compares names only; middleware values may hold funcs,
// which are not comparable.
func containsMiddleware(list []any, middleware any) bool {
	name, ok := middleware.(string)
	if !ok {
		return false
	}
	return slices.ContainsFunc(list, func(m any) bool {
		s, isString := m.(string)
		return isString && s == name
	})
}

// Bootstrap syncs the middleware tables into the router. Handle does this
// on its own; listings call it before reading the router.
func (k *Kernel) Bootstrap() { k.syncMiddlewareToRouter() }

// syncMiddlewareToRouter pushes groups, aliases and priority into the
// router and returns the global stack to run.
func (k *Kernel) syncMiddlewareToRouter() []any {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.synced {
		k.router.SetMiddlewarePriority(k.priority)
		for name, members := range k.groups {
			k.router.MiddlewareGroup(name, members)
		}
		for name, target := range k.aliases {
			k.router.AliasMiddleware(name, target)
		}
		k.synced = true
	}
	return slices.Clone(k.global)
}

// ── Handling ─────────────────────────────────────────────────────────────────

// Handle runs req through the global middleware and the router. Errors are
// reported and rendered, so a response is always returned.
func (k *Kernel) Handle(req *gohttp.Request) (res *gohttp.Response) {
	scope := k.app.Scope()
	defer func() {
		if rec := recover(); rec != nil {
			res = k.renderException(scope, req, fmt.Errorf("panic: %v", rec))
		}
	}()

	if k.cfg.HTTP.MethodOverride {
		req.EnableMethodOverride()
	}
	scope.Instance(routing.RequestKey, req)
	scope.Instance("request", req)

	// The disable flag only reaches route middleware; global middleware
	// always runs.
	global := k.syncMiddlewareToRouter()
	if k.cfg.HTTP.DisableMiddleware {
		scope.Instance(routing.DisableMiddlewareKey, true)
	}

	out, err := pipeline.New[*gohttp.Request, *gohttp.Response](scope).
		Send(req).
		Through(global...).
		Then(k.dispatchToRouter(scope))
	if err != nil {
		return k.renderException(scope, req, err)
	}
	if res, err = routing.ToResponse(req, out); err != nil {
		return k.renderException(scope, req, err)
	}
	return res
}

// dispatchToRouter is the innermost stage of the global pipeline. Router
// errors become responses here, so global middleware sees the final status.
func (k *Kernel) dispatchToRouter(scope *container.Container) routing.Next {
	return func(req *gohttp.Request) (*gohttp.Response, error) {
		scope.Instance(routing.RequestKey, req)
		scope.Instance("request", req)

		res, err := k.router.DispatchWithin(scope, req)
		if err != nil {
			return k.renderException(scope, req, err), nil
		}
		return res, nil
	}
}

func (k *Kernel) renderException(scope *container.Container, req *gohttp.Request, err error) *gohttp.Response {
	handler, herr := container.Resolve[*exceptions.Handler](scope, providers.ExceptionHandlerKey)
	if herr != nil {
		handler = exceptions.NewHandler(nil, false)
	}
	handler.Report(req, err)
	return handler.Render(req, err)
}

// ServeHTTP adapts the kernel to net/http.
func (k *Kernel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := k.Handle(gohttp.NewRequest(r))
	if err := res.Send(w); err != nil {
		k.app.Logger().WithError(err).Warn("writing response")
	}
}

// Handler returns the outer chi mux: request ids, real client IPs and panic
// recovery around the kernel, plus the Prometheus endpoint when enabled.
func (k *Kernel) Handler() (http.Handler, error) {
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	if k.cfg.HTTP.Metrics {
		reg, err := container.Resolve[*prometheus.Registry](k.app.Container, providers.MetricsRegistryKey)
		if err != nil {
			return nil, err
		}
		mux.Handle(k.cfg.HTTP.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/*", k)
	return mux, nil
}
