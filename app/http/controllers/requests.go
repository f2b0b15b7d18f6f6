package controllers

import (
	"strconv"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/http/validation"
)

// Form requests validate themselves as soon as an action asks for them, so
// precognitive requests stop right after validation.
//
//	// Laravel: class StoreUserRequest extends FormRequest

// LoginRequest carries credentials for /api/login.
type LoginRequest struct{ *gohttp.Request }

func (r *LoginRequest) ValidateResolved() error {
	return validation.Request(r.Request, validation.Rules{
		"email":    "required|email",
		"password": "required",
	})
}

// StoreProductRequest validates a new product.
type StoreProductRequest struct{ *gohttp.Request }

func (r *StoreProductRequest) ValidateResolved() error {
	return validation.Request(r.Request, validation.Rules{
		"name":  "required|min:2|max:100",
		"price": "required|numeric|gte:0",
	})
}

func (r *StoreProductRequest) Price() float64 {
	p, _ := strconv.ParseFloat(r.Input("price"), 64)
	return p
}

// StoreUserRequest validates a new user.
type StoreUserRequest struct{ *gohttp.Request }

func (r *StoreUserRequest) ValidateResolved() error {
	return validation.Request(r.Request, validation.Rules{
		"name":     "required|min:2|max:100",
		"email":    "required|email",
		"password": "required|min:8",
	})
}

// UpdateUserRequest validates a partial update; every field is optional.
type UpdateUserRequest struct{ *gohttp.Request }

func (r *UpdateUserRequest) ValidateResolved() error {
	rules := validation.Rules{}
	if r.Has("name") {
		rules["name"] = "min:2|max:100"
	}
	if r.Has("email") {
		rules["email"] = "email"
	}
	if r.Has("password") {
		rules["password"] = "min:8"
	}
	return validation.Request(r.Request, rules)
}
