package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/exceptions"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
	"github.com/km-arc/go-laravel-kernel/framework/providers"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Version of the framework core.
const Version = "0.2.0"

// Application is the top-level application container.
// It embeds the IoC Container and ProviderRegistry so user code can
// call app.Bind(), app.Singleton(), app.Register() directly,
// exactly like $app in Laravel's bootstrap/app.php.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	kernel *Kernel
}

// New creates the application and registers the framework providers.
// Providers are not booted until Boot (or Serve) is called.
//
//	// Laravel: bootstrap/app.php
//	application, err := app.New(".env")
func New(envFiles ...string) (*Application, error) {
	c := container.New()
	registry := container.NewProviderRegistry(c)

	a := &Application{
		Container: c,
		Providers: registry,
	}
	c.Instance("app", a)

	// Register framework core providers (same order as Laravel)
	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{EnvFiles: envFiles},
		&providers.LoggingServiceProvider{},
		&providers.ExceptionServiceProvider{},
		&providers.RoutingServiceProvider{},
		&providers.MiddlewareServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a.Container, providers.ConfigKey)
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a.Container, providers.RouterKey)
}

// Logger resolves the application logger.
func (a *Application) Logger() *logrus.Logger {
	return container.MustResolve[*logrus.Logger](a.Container, providers.LogKey)
}

// ExceptionHandler resolves the exception handler, loading its deferred
// provider on first use.
func (a *Application) ExceptionHandler() (*exceptions.Handler, error) {
	return container.Resolve[*exceptions.Handler](a.Container, providers.ExceptionHandlerKey)
}

// Kernel returns the HTTP kernel, creating it on first call.
func (a *Application) Kernel() *Kernel {
	if a.kernel == nil {
		a.kernel = NewKernel(a)
	}
	return a.kernel
}

// Serve boots the application (if needed) and listens on APP_PORT until ctx
// is cancelled, then shuts down gracefully within HTTP.ShutdownTimeout.
//
//	// Laravel: php artisan serve
func (a *Application) Serve(ctx context.Context) error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return err
		}
	}
	cfg := a.Config()
	logger := a.Logger()
	kernel := a.Kernel()

	handler, err := kernel.Handler()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	throttle, err := container.Resolve[*middleware.Throttle](a.Container, providers.ThrottleMiddlewareKey)
	if err != nil {
		return err
	}
	throttle.StartCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"app":  cfg.App.Name,
			"env":  cfg.App.Env,
			"addr": srv.Addr,
		}).Info("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
func (a *Application) Version() string     { return Version }
