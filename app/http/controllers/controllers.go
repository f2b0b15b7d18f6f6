// Package controllers holds the sample application's HTTP controllers.
// Each controller is bound in the container and referenced from routes by
// abstract, e.g. routing.Uses("controllers.users", "Show").
package controllers

import (
	"errors"
	"net/http"

	"github.com/km-arc/go-laravel-kernel/app/models"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// ── AuthenticateController ───────────────────────────────────────────────────

type AuthenticateController struct {
	users *models.UserStore
}

func NewAuthenticateController(users *models.UserStore) *AuthenticateController {
	return &AuthenticateController{users: users}
}

// Login exchanges credentials for an access token.
//
//	POST /api/login {"email": "...", "password": "..."}
func (c *AuthenticateController) Login(form *LoginRequest) (*gohttp.Response, error) {
	user, err := c.users.FindByEmail(form.Input("email"))
	if err != nil || user.Password != form.Input("password") {
		return gohttp.NotFound("User not found."), nil
	}
	return gohttp.JSON(http.StatusOK, c.users.CreateToken(user, "API_TOKEN")), nil
}

// Logout revokes the token the request was authenticated with.
func (c *AuthenticateController) Logout(req *gohttp.Request) map[string]string {
	c.users.RevokeToken(req.BearerToken())
	return map[string]string{"message": "User disconnected successfully."}
}

// ── ProductController ────────────────────────────────────────────────────────

type ProductController struct {
	products *models.ProductStore
}

func NewProductController(products *models.ProductStore) *ProductController {
	return &ProductController{products: products}
}

func (c *ProductController) Index() []models.Product {
	return c.products.All()
}

func (c *ProductController) Show(id int) (*models.Product, error) {
	product, err := c.products.Find(id)
	if err != nil {
		return nil, notFound(err, "Product not found.")
	}
	return product, nil
}

// Store answers 201 with the new product.
func (c *ProductController) Store(form *StoreProductRequest) *models.Product {
	return c.products.Create(models.Product{
		Name:  form.Input("name"),
		Price: form.Price(),
	})
}

// ── UserController ───────────────────────────────────────────────────────────

type UserController struct {
	users *models.UserStore
}

func NewUserController(users *models.UserStore) *UserController {
	return &UserController{users: users}
}

func (c *UserController) Index() []models.User {
	return c.users.All()
}

func (c *UserController) Show(id int) (*models.User, error) {
	user, err := c.users.Find(id)
	if err != nil {
		return nil, notFound(err, "User not found.")
	}
	return user, nil
}

func (c *UserController) Store(form *StoreUserRequest) *models.User {
	return c.users.Create(models.User{
		Name:     form.Input("name"),
		Email:    form.Input("email"),
		Password: form.Input("password"),
	})
}

func (c *UserController) Update(id int, form *UpdateUserRequest) (*models.User, error) {
	user, err := c.users.Update(id, models.User{
		Name:     form.Input("name"),
		Email:    form.Input("email"),
		Password: form.Input("password"),
	})
	if err != nil {
		return nil, notFound(err, "User not found.")
	}
	return user, nil
}

func (c *UserController) Destroy(id int) (string, error) {
	if err := c.users.Delete(id); err != nil {
		return "", notFound(err, "User not found.")
	}
	return "Success.", nil
}

func notFound(err error, message string) error {
	if errors.Is(err, models.ErrNotFound) {
		return gohttp.Abort(http.StatusNotFound, message)
	}
	return err
}
