package routing

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// RouteCollection stores routes by method in registration order.
// Registering the same URI for a method again replaces the earlier route.
type RouteCollection struct {
	mu     sync.RWMutex
	routes map[string][]*Route
	all    []*Route
}

// NewRouteCollection returns an empty collection.
func NewRouteCollection() *RouteCollection {
	return &RouteCollection{routes: make(map[string][]*Route)}
}

// Add registers route under each of its methods.
func (c *RouteCollection) Add(route *Route) *Route {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, method := range route.methods {
		list := c.routes[method]
		i := slices.IndexFunc(list, func(r *Route) bool { return r.uri == route.uri })
		if i >= 0 {
			c.dropLocked(list[i])
			list[i] = route
		} else {
			list = append(list, route)
		}
		c.routes[method] = list
	}
	if !slices.Contains(c.all, route) {
		c.all = append(c.all, route)
	}
	return route
}

// dropLocked forgets old once no method refers to it any more.
func (c *RouteCollection) dropLocked(old *Route) {
	refs := 0
	for _, list := range c.routes {
		for _, r := range list {
			if r == old {
				refs++
			}
		}
	}
	if refs <= 1 {
		c.all = slices.DeleteFunc(c.all, func(r *Route) bool { return r == old })
	}
}

// Get returns the routes for method, or every route when method is "".
func (c *RouteCollection) Get(method string) []*Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if method == "" {
		return slices.Clone(c.all)
	}
	return slices.Clone(c.routes[strings.ToUpper(method)])
}

// GetByName finds a route by name.
func (c *RouteCollection) GetByName(name string) *Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.all {
		if r.name == name {
			return r
		}
	}
	return nil
}

// Count returns the number of distinct routes.
func (c *RouteCollection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.all)
}

// Match finds the route for req.
//
// When nothing matches under the request method the other verbs are
// probed: a hit there means *MethodNotAllowedError, except for OPTIONS
// which gets a synthesized route answering 200 with an Allow header.
// No hit at all means *NotFoundError.
func (c *RouteCollection) Match(req *gohttp.Request) (*Route, error) {
	if route := matchAgainst(c.Get(req.Method()), req); route != nil {
		return route, nil
	}

	if others := c.alternateVerbs(req); len(others) > 0 {
		return c.alternates(req, others)
	}
	return nil, &NotFoundError{Method: req.Method(), Path: req.Path()}
}

func matchAgainst(routes []*Route, req *gohttp.Request) *Route {
	for _, r := range routes {
		if r.Matches(req) {
			return r
		}
	}
	return nil
}

// alternateVerbs lists the other verbs with a route for the path.
func (c *RouteCollection) alternateVerbs(req *gohttp.Request) []string {
	var others []string
	for _, verb := range Verbs {
		if verb == req.Method() {
			continue
		}
		if matchAgainst(c.Get(verb), req) != nil {
			others = append(others, verb)
		}
	}
	return others
}

func (c *RouteCollection) alternates(req *gohttp.Request, methods []string) (*Route, error) {
	if req.Method() != http.MethodOptions {
		return nil, &MethodNotAllowedError{Method: req.Method(), Allowed: methods}
	}
	allow := strings.Join(methods, ",")
	return NewRoute([]string{http.MethodOptions}, req.Path(), func() *gohttp.Response {
		return gohttp.NewResponse(nil, http.StatusOK, http.Header{"Allow": {allow}})
	}), nil
}
