package routing

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/km-arc/go-laravel-kernel/framework/container"
)

// Container keys under which the dispatchers are looked up for each
// request. Binding them in a request scope swaps how actions run.
const (
	CallableDispatcherKey   = "routing.callable-dispatcher"
	ControllerDispatcherKey = "routing.controller-dispatcher"
)

// CallableDispatcher runs closure actions.
type CallableDispatcher interface {
	Dispatch(route *BoundRoute, callable *container.Callable) (any, error)
}

// ControllerDispatcher runs controller actions.
type ControllerDispatcher interface {
	Dispatch(route *BoundRoute, controller any, method string) (any, error)
}

// ActionCaller lets a controller take over the call once the arguments
// are resolved.
//
//	// Laravel: Controller::callAction($method, $parameters)
type ActionCaller interface {
	CallAction(method string, args []any) (any, error)
}

// ValidatesWhenResolved is implemented by arguments that check themselves
// as soon as they are resolved for an action, such as form requests.
//
//	// Laravel: Illuminate\Contracts\Validation\ValidatesWhenResolved
type ValidatesWhenResolved interface {
	ValidateResolved() error
}

// HasActions exposes controller methods with parameter names, so route
// parameters can be matched by name.
//
//	func (c *UserController) Actions() map[string]*container.Callable {
//	    return map[string]*container.Callable{
//	        "Show": container.Fn(c.Show, "id", ""),
//	    }
//	}
type HasActions interface {
	Actions() map[string]*container.Callable
}

// ── Actions ──────────────────────────────────────────────────────────────────

// ControllerAction names a controller method. Controller is either the
// controller value or the container abstract it is resolved from on every
// dispatch.
type ControllerAction struct {
	Controller any
	Method     string
}

// Uses builds a controller action.
//
//	// Laravel: [UserController::class, 'show']
//	r.Get("/users/{id}", routing.Uses("controllers.users", "Show"))
func Uses(controller any, method string) ControllerAction {
	return ControllerAction{Controller: controller, Method: method}
}

// action is a route action normalized at registration.
type action struct {
	callable   *container.Callable
	controller *ControllerAction
	err        error
}

// parseAction accepts a *container.Callable, a ControllerAction, an
// "abstract@method" string or any function.
func parseAction(v any) action {
	switch a := v.(type) {
	case *container.Callable:
		return action{callable: a}
	case ControllerAction:
		return action{controller: &a}
	case *ControllerAction:
		return action{controller: a}
	case string:
		abstract, method, ok := strings.Cut(a, "@")
		if !ok || abstract == "" || method == "" {
			return action{err: fmt.Errorf("routing: %w: action [%s] must be written as abstract@method",
				container.ErrInvalidConfiguration, a)}
		}
		return action{controller: &ControllerAction{Controller: abstract, Method: method}}
	}
	c, err := container.NewCallable(v)
	if err != nil {
		return action{err: fmt.Errorf("routing: invalid route action: %w", err)}
	}
	return action{callable: c}
}

func (a action) String() string {
	switch {
	case a.err != nil:
		return "invalid"
	case a.controller != nil:
		if s, ok := a.controller.Controller.(string); ok {
			return s + "@" + a.controller.Method
		}
		return fmt.Sprintf("%T@%s", a.controller.Controller, a.controller.Method)
	}
	return "Closure " + a.callable.Name()
}

// ── Parameter resolution ─────────────────────────────────────────────────────

// ResolveParameters resolves the arguments of fn for route. Bound route
// parameters are matched by name, unnamed scalar parameters take the
// remaining route parameters in order, and everything else resolves from
// c by type or falls back to its default. Nil route parameters are
// ignored. Resolved arguments implementing ValidatesWhenResolved are
// validated before they are returned.
//
//	// Laravel: ResolvesRouteDependencies::resolveMethodDependencies
func ResolveParameters(c *container.Container, fn *container.Callable, route *BoundRoute) ([]any, error) {
	params := route.ParametersWithoutNulls()
	declared := fn.Params()

	var claimed []string
	for _, p := range declared {
		if _, ok := params[p.Name]; ok && p.Name != "" {
			claimed = append(claimed, p.Name)
		}
	}
	remaining := slices.DeleteFunc(route.parameterOrder(), func(name string) bool {
		return slices.Contains(claimed, name)
	})

	labels := make([]string, len(declared))
	for i, p := range declared {
		if p.Name != "" || !p.IsPrimitive() || p.Variadic || len(remaining) == 0 {
			continue
		}
		labels[i], remaining = remaining[0], remaining[1:]
	}

	overrides := make(container.Params, len(params))
	for k, v := range params {
		overrides[k] = v
	}
	args, err := c.ResolveArguments(fn.Label(labels...), overrides)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		if v, ok := arg.(ValidatesWhenResolved); ok {
			if err := v.ValidateResolved(); err != nil {
				return nil, err
			}
		}
	}
	return args, nil
}

// ControllerCallable finds method on controller: first in its Actions()
// metadata, then in its method set. A lower-case first letter is
// accepted for the method set ("show" finds Show).
func ControllerCallable(controller any, method string) (*container.Callable, error) {
	if ha, ok := controller.(HasActions); ok {
		if fn, ok := ha.Actions()[method]; ok {
			return fn, nil
		}
	}

	v := reflect.ValueOf(controller)
	if !v.IsValid() {
		return nil, fmt.Errorf("routing: %w: nil controller", container.ErrInvalidConfiguration)
	}
	m := v.MethodByName(method)
	if !m.IsValid() {
		m = v.MethodByName(exported(method))
	}
	if !m.IsValid() {
		return nil, fmt.Errorf("routing: %w: method %T::%s does not exist",
			container.ErrInvalidConfiguration, controller, method)
	}
	return container.NewCallable(m.Interface())
}

func exported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// ── Default dispatchers ──────────────────────────────────────────────────────

// DefaultCallableDispatcher resolves arguments from the route and the
// container, then invokes the callable.
type DefaultCallableDispatcher struct {
	container *container.Container
}

// NewCallableDispatcher creates a dispatcher resolving from c.
func NewCallableDispatcher(c *container.Container) *DefaultCallableDispatcher {
	return &DefaultCallableDispatcher{container: c}
}

// Dispatch runs callable for route.
func (d *DefaultCallableDispatcher) Dispatch(route *BoundRoute, callable *container.Callable) (any, error) {
	args, err := ResolveParameters(d.container, callable, route)
	if err != nil {
		return nil, err
	}
	return callable.Invoke(args)
}

// DefaultControllerDispatcher is DefaultCallableDispatcher for controller
// methods. Controllers implementing ActionCaller receive the call.
type DefaultControllerDispatcher struct {
	container *container.Container
}

// NewControllerDispatcher creates a dispatcher resolving from c.
func NewControllerDispatcher(c *container.Container) *DefaultControllerDispatcher {
	return &DefaultControllerDispatcher{container: c}
}

// Dispatch runs controller.method for route.
func (d *DefaultControllerDispatcher) Dispatch(route *BoundRoute, controller any, method string) (any, error) {
	fn, err := ControllerCallable(controller, method)
	if err != nil {
		return nil, err
	}
	args, err := ResolveParameters(d.container, fn, route)
	if err != nil {
		return nil, err
	}
	if caller, ok := controller.(ActionCaller); ok {
		return caller.CallAction(method, args)
	}
	return fn.Invoke(args)
}
