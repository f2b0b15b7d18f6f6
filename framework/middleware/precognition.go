package middleware

import (
	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// HandlePrecognitiveRequests answers "Precognition: true" requests by
// resolving, and so validating, the action's arguments without running
// the action. It swaps the dispatchers of the request scope it was built
// in, so it must be resolved per request from that scope.
//
//	// Laravel: Illuminate\Foundation\Http\Middleware\HandlePrecognitiveRequests
type HandlePrecognitiveRequests struct {
	scope *container.Container
}

// NewHandlePrecognitiveRequests creates the middleware for scope.
func NewHandlePrecognitiveRequests(scope *container.Container) *HandlePrecognitiveRequests {
	return &HandlePrecognitiveRequests{scope: scope}
}

func (m *HandlePrecognitiveRequests) Handle(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
	if !req.IsAttemptingPrecognition() {
		res, err := next(req)
		if res != nil {
			res.AddVary("Precognition")
		}
		return res, err
	}

	req.SetAttribute("precognitive", true)
	m.scope.Instance(routing.CallableDispatcherKey, NewPrecognitionCallableDispatcher(m.scope))
	m.scope.Instance(routing.ControllerDispatcherKey, NewPrecognitionControllerDispatcher(m.scope))

	res, err := next(req)
	if err != nil {
		return nil, err
	}
	if res != nil {
		MarkPrecognitive(res)
	}
	return res, nil
}

// MarkPrecognitive sets the headers of a response to a precognitive request.
func MarkPrecognitive(res *gohttp.Response) {
	res.Header.Set("Precognition", "true")
	res.AddVary("Precognition")
}

// precognitionSuccess is the answer once every argument resolved.
func precognitionSuccess() *gohttp.Response {
	return gohttp.NoContent().WithHeader("Precognition-Success", "true")
}

// ── Dispatchers ──────────────────────────────────────────────────────────────

// PrecognitionCallableDispatcher resolves a closure's arguments and stops.
//
//	// Laravel: Illuminate\Routing\PrecognitionCallableDispatcher
type PrecognitionCallableDispatcher struct {
	container *container.Container
}

func NewPrecognitionCallableDispatcher(c *container.Container) *PrecognitionCallableDispatcher {
	return &PrecognitionCallableDispatcher{container: c}
}

func (d *PrecognitionCallableDispatcher) Dispatch(route *routing.BoundRoute, callable *container.Callable) (any, error) {
	if _, err := routing.ResolveParameters(d.container, callable, route); err != nil {
		return nil, err
	}
	return precognitionSuccess(), nil
}

// PrecognitionControllerDispatcher checks the controller method exists,
// resolves its arguments and stops.
//
//	// Laravel: Illuminate\Routing\PrecognitionControllerDispatcher
type PrecognitionControllerDispatcher struct {
	container *container.Container
}

func NewPrecognitionControllerDispatcher(c *container.Container) *PrecognitionControllerDispatcher {
	return &PrecognitionControllerDispatcher{container: c}
}

func (d *PrecognitionControllerDispatcher) Dispatch(route *routing.BoundRoute, controller any, method string) (any, error) {
	fn, err := routing.ControllerCallable(controller, method)
	if err != nil {
		return nil, err
	}
	if _, err := routing.ResolveParameters(d.container, fn, route); err != nil {
		return nil, err
	}
	return precognitionSuccess(), nil
}
