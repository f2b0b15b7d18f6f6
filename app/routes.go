package app

import (
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Routes registers the application routes.
//
// Middleware: "api" rate limits API routes, "securize" requires a bearer
// token issued by /api/login.
//
//	// Laravel: routes/api.php
func Routes(r *routing.Router) {
	r.Get("/", func(req *gohttp.Request) string {
		return "Welcome"
	}).Name("home")

	r.Prefix("/api", func(r *routing.Router) {
		r.Middleware("api")

		r.Post("/login", routing.Uses(AuthController, "Login")).Name("login")
		r.Post("/logout", routing.Uses(AuthController, "Logout")).Middleware("securize").Name("logout")

		r.Get("/products", routing.Uses(ProductController, "Index")).Name("products.index")
		r.Post("/products", routing.Uses(ProductController, "Store")).Name("products.store")
		r.Get("/products/{id}", routing.Uses(ProductController, "Show")).Where("id", "[0-9]+").Name("products.show")

		r.Group(func(r *routing.Router) {
			r.Middleware("securize")
			r.Resource("/users", UserController)
		})
	})
}
