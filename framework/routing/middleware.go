package routing

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/pipeline"
)

// Next is the continuation handed to middleware.
type Next = pipeline.Handler[*gohttp.Request, *gohttp.Response]

// Middleware is the contract every route middleware implements.
//
//	// Laravel: public function handle(Request $request, Closure $next)
type Middleware = pipeline.Stage[*gohttp.Request, *gohttp.Response]

// ParameterizedMiddleware receives the parameters of "name:p1,p2".
type ParameterizedMiddleware = pipeline.ParameterizedStage[*gohttp.Request, *gohttp.Response]

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc = pipeline.StageFunc[*gohttp.Request, *gohttp.Response]

// ── Resolution ───────────────────────────────────────────────────────────────

// resolveMiddlewareName expands one declared middleware:
//
//   - non-string values pass through
//   - a group name expands to its members (aliases allowed, groups not)
//   - an alias resolves to its target
//   - anything else is kept as a container abstract
//
// Parameters after the colon survive every step.
func (r *Router) resolveMiddlewareName(name any) ([]any, error) {
	s, ok := name.(string)
	if !ok {
		return []any{name}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	base, _, _ := strings.Cut(s, ":")
	if members, ok := r.middlewareGroups[base]; ok {
		out := make([]any, 0, len(members))
		for _, m := range members {
			ms, isString := m.(string)
			if !isString {
				out = append(out, m)
				continue
			}
			mbase, _, _ := strings.Cut(ms, ":")
			if _, nested := r.middlewareGroups[mbase]; nested {
				return nil, fmt.Errorf("routing: %w: middleware group [%s] references group [%s]",
					container.ErrInvalidConfiguration, base, mbase)
			}
			out = append(out, r.aliasTarget(ms))
		}
		return out, nil
	}
	return []any{r.aliasTarget(s)}, nil
}

// aliasTarget resolves an alias, keeping "name:params" parameters.
// Must hold r.mu.
func (r *Router) aliasTarget(s string) any {
	base, params, hasParams := strings.Cut(s, ":")
	target, ok := r.middlewareAliases[base]
	if !ok {
		return s
	}
	switch t := target.(type) {
	case string:
		if hasParams {
			return t + ":" + params
		}
		return t
	default:
		if hasParams {
			return &withParameters{stage: t, name: s, params: strings.Split(params, ",")}
		}
		return t
	}
}

// GatherRouteMiddleware returns the middleware to run for route, in order:
// the priority list followed by the route's own middleware, with excluded
// middleware removed and duplicates dropped (first occurrence wins).
func (r *Router) GatherRouteMiddleware(route *Route) ([]any, error) {
	r.mu.RLock()
	declared := append(slices.Clone(r.middlewarePriority), route.middleware...)
	r.mu.RUnlock()

	resolved, err := r.expand(declared)
	if err != nil {
		return nil, err
	}
	excluded, err := r.expand(route.excluded)
	if err != nil {
		return nil, err
	}

	if len(excluded) > 0 {
		skip := make(map[any]bool, len(excluded))
		for _, m := range excluded {
			if k := middlewareKey(m); k != nil {
				skip[k] = true
			}
		}
		resolved = slices.DeleteFunc(resolved, func(m any) bool {
			k := middlewareKey(m)
			return k != nil && skip[k]
		})
	}
	return uniqueMiddleware(resolved), nil
}

func (r *Router) expand(names []any) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		ms, err := r.resolveMiddlewareName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// uniqueMiddleware keeps the first occurrence of each middleware: strings
// compare by name, pointers and funcs by identity.
func uniqueMiddleware(list []any) []any {
	seen := make(map[any]bool, len(list))
	out := make([]any, 0, len(list))
	for _, m := range list {
		k := middlewareKey(m)
		if k != nil {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, m)
	}
	return out
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// middlewareKey returns a comparable identity for m, or nil when m cannot
// be compared.
func middlewareKey(m any) any {
	switch v := m.(type) {
	case nil:
		return nil
	case string:
		return v
	case *withParameters:
		return "value:" + v.name
	}
	rv := reflect.ValueOf(m)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return identity{typ: rv.Type(), ptr: rv.Pointer()}
	}
	if rv.Type().Comparable() {
		return m
	}
	return nil
}

// withParameters carries the parameters of an aliased middleware value.
type withParameters struct {
	stage  any
	name   string
	params []string
}

// Handle implements Middleware.
func (w *withParameters) Handle(req *gohttp.Request, next Next) (*gohttp.Response, error) {
	switch s := w.stage.(type) {
	case ParameterizedMiddleware:
		return s.HandleWith(req, next, w.params)
	case Middleware:
		return s.Handle(req, next)
	case func(*gohttp.Request, Next) (*gohttp.Response, error):
		return s(req, next)
	}
	return nil, fmt.Errorf("routing: %w: middleware [%s] is %T, which is not a stage",
		container.ErrInvalidConfiguration, w.name, w.stage)
}

// middlewareNames renders resolved middleware for listings.
func middlewareNames(list []any) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		switch v := m.(type) {
		case string:
			out = append(out, v)
		case *withParameters:
			out = append(out, v.name)
		default:
			out = append(out, fmt.Sprintf("%T", m))
		}
	}
	return out
}
