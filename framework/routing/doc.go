// Package routing matches requests to routes and runs their actions
// through route middleware.
//
// # Routes
//
//	r := routing.NewRouter(app.Container)
//	r.Get("/", func() string { return "Welcome" })
//	r.Get("/users/{id}", container.Fn(showUser, "id")).Where("id", "[0-9]+")
//	r.Get("/posts/{page?}", listPosts).Defaults("page", "1")
//	r.Resource("/photos", "controllers.photos")
//
// An action is a *container.Callable, a ControllerAction built with Uses,
// an "abstract@method" string or any function. Parameters are resolved by
// name from the route, then by type from the request scope (the
// *gohttp.Request and *BoundRoute are registered there), then from their
// defaults.
//
// # Matching
//
// Routes for the request method are tried in registration order. When none
// matches, the other verbs are probed: a match there is a 405
// (*MethodNotAllowedError) except for OPTIONS, which is answered with 200
// and an Allow header. No match at all is a 404 (*NotFoundError).
//
// # Middleware
//
// Route middleware are names (aliases, groups or container abstracts,
// optionally followed by ":params") or values implementing Middleware.
// The priority list always runs first and every middleware runs at most
// once:
//
//	r.AliasMiddleware("auth", "middleware.authenticate")
//	r.MiddlewareGroup("api", []any{"throttle:api"})
//	r.SetMiddlewarePriority([]any{"middleware.precognitive"})
//
// Binding "middleware.disable" to true skips route middleware.
//
// # Responses
//
// Whatever an action returns is normalized by ToResponse: maps, slices and
// structs become JSON, strings become text, responses pass through.
package routing
