package app

import (
	"context"

	"github.com/km-arc/go-laravel-kernel/app/http/controllers"
	"github.com/km-arc/go-laravel-kernel/app/models"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
	"github.com/km-arc/go-laravel-kernel/framework/providers"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Controller abstracts used by the routes.
const (
	AuthController    = "controllers.auth"
	ProductController = "controllers.products"
	UserController    = "controllers.users"
)

// AppServiceProvider binds the sample application's stores, controllers,
// form requests and token verifier, then registers its routes on boot.
//
//	// Laravel: App\Providers\AppServiceProvider + RouteServiceProvider
type AppServiceProvider struct {
	container.BaseProvider

	// Users and Products seed the stores; nil means the demo data.
	Users    *models.UserStore
	Products *models.ProductStore
}

func (p *AppServiceProvider) Register(app *container.Container) error {
	users, products := p.Users, p.Products
	if users == nil {
		users = models.NewUserStore(
			models.User{Name: "User Sample 1", Email: "user-sample-1@mail.com", Password: "User Sample 1"},
			models.User{Name: "User Sample 2", Email: "user-sample-2@mail.com", Password: "User Sample 2"},
		)
	}
	if products == nil {
		products = models.NewProductStore(
			models.Product{Name: "Keyboard", Price: 49.9},
			models.Product{Name: "Monitor", Price: 189},
		)
	}
	app.Instance(container.TypeKey(users), users)
	app.Instance(container.TypeKey(products), products)

	app.Instance(providers.TokenVerifierKey, middleware.TokenVerifierFunc(
		func(_ context.Context, token string) (any, error) {
			user, err := users.FindByToken(token)
			if err != nil {
				return nil, middleware.ErrInvalidToken
			}
			return user, nil
		}))

	bindings := map[string]any{
		AuthController:    func(*container.Container) any { return controllers.NewAuthenticateController(users) },
		ProductController: func(*container.Container) any { return controllers.NewProductController(products) },
		UserController:    func(*container.Container) any { return controllers.NewUserController(users) },
	}
	for abstract, factory := range bindings {
		if err := app.Singleton(abstract, factory); err != nil {
			return err
		}
	}

	// Form requests wrap the request of the scope resolving them.
	forms := map[string]func(*gohttp.Request) any{
		container.TypeKey((*controllers.LoginRequest)(nil)):        func(r *gohttp.Request) any { return &controllers.LoginRequest{Request: r} },
		container.TypeKey((*controllers.StoreProductRequest)(nil)): func(r *gohttp.Request) any { return &controllers.StoreProductRequest{Request: r} },
		container.TypeKey((*controllers.StoreUserRequest)(nil)):    func(r *gohttp.Request) any { return &controllers.StoreUserRequest{Request: r} },
		container.TypeKey((*controllers.UpdateUserRequest)(nil)):   func(r *gohttp.Request) any { return &controllers.UpdateUserRequest{Request: r} },
	}
	for abstract, wrap := range forms {
		if err := app.Bind(abstract, func(c *container.Container) (any, error) {
			req, err := container.Resolve[*gohttp.Request](c, routing.RequestKey)
			if err != nil {
				return nil, err
			}
			return wrap(req), nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *AppServiceProvider) Boot(app *container.Container) error {
	router, err := container.Resolve[*routing.Router](app, providers.RouterKey)
	if err != nil {
		return err
	}
	Routes(router)
	return nil
}
