// Package middleware holds the framework's HTTP middleware. Each type
// implements routing.Middleware, and those taking parameters also
// implement routing.ParameterizedMiddleware.
//
// The kernel registers them under short aliases:
//
//	auth          Authenticate               bearer token → req.User()
//	securize      Authenticate               same as auth
//	throttle      Throttle                   throttle:60,1 | throttle:api
//	precognitive  HandlePrecognitiveRequests validate without running the action
//
// HandleCors, LogRequests and Metrics run as global middleware around
// every request.
//
//	// Laravel: app/Http/Kernel.php
//	r.Prefix("/api", func(r *routing.Router) {
//	    r.Middleware("api", "auth")
//	    r.Get("/users", routing.Uses("controllers.users", "Index"))
//	})
package middleware
