// Package app is the sample application: an API with token login, a
// product catalogue and user management, served by the framework kernel.
package app

import (
	foundation "github.com/km-arc/go-laravel-kernel/framework/app"
)

// Bootstrap creates the application, registers the sample provider and
// boots it.
//
//	// Laravel: bootstrap/app.php
//	application, err := app.Bootstrap(".env")
//	_ = application.Serve(ctx)
func Bootstrap(provider *AppServiceProvider, envFiles ...string) (*foundation.Application, error) {
	application, err := foundation.New(envFiles...)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		provider = &AppServiceProvider{}
	}
	if err := application.Register(provider); err != nil {
		return nil, err
	}
	if err := application.Boot(); err != nil {
		return nil, err
	}
	return application, nil
}
