package providers

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/exceptions"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Abstracts bound by the framework providers.
const (
	ConfigKey           = "config"
	LogKey              = "log"
	RouterKey           = "router"
	ExceptionHandlerKey = "exceptions.handler"
	TokenVerifierKey    = "auth.verifier"
	MetricsRegistryKey  = "metrics.registry"

	AuthMiddlewareKey         = "middleware.auth"
	ThrottleMiddlewareKey     = "middleware.throttle"
	PrecognitionMiddlewareKey = "middleware.precognitive"
	CorsMiddlewareKey         = "middleware.cors"
	LogMiddlewareKey          = "middleware.log"
	MetricsMiddlewareKey      = "middleware.metrics"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration from .env and
// binds it into the container as "config".
//
// Bound abstracts:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	envFiles := p.EnvFiles
	if err := app.Singleton(ConfigKey, func(c *container.Container) any {
		return config.Load(envFiles...)
	}); err != nil {
		return err
	}
	if err := app.Alias(ConfigKey, container.TypeKey((*config.Config)(nil))); err != nil {
		return err
	}
	return app.Alias(ConfigKey, "configuration")
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the application logger.
//
// Bound abstracts:
//   - "log" → *logrus.Logger (level and format from config.Log)
//
// Laravel equivalent:
//
//	// Illuminate\Log\LogServiceProvider
//	$app->singleton('log', fn($app) => new LogManager($app));
type LoggingServiceProvider struct {
	container.BaseProvider
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	if err := app.Singleton(LogKey, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, ConfigKey)
		if err != nil {
			return nil, err
		}
		return NewLogger(cfg.Log)
	}); err != nil {
		return err
	}
	return app.Alias(LogKey, container.TypeKey((*logrus.Logger)(nil)))
}

// NewLogger builds a logrus logger writing to stderr.
func NewLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router and the default action
// dispatchers.
//
// Bound abstracts:
//   - "router"                         → *routing.Router
//   - routing.CallableDispatcherKey    → routing.CallableDispatcher (per scope)
//   - routing.ControllerDispatcherKey  → routing.ControllerDispatcher (per scope)
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	// The router resolves from the root container, never from the scope
	// that happened to resolve it first.
	if err := app.Singleton(RouterKey, func(*container.Container) any {
		return routing.NewRouter(app)
	}); err != nil {
		return err
	}
	if err := app.Alias(RouterKey, container.TypeKey((*routing.Router)(nil))); err != nil {
		return err
	}
	if err := app.Bind(routing.CallableDispatcherKey, func(c *container.Container) any {
		return routing.NewCallableDispatcher(c)
	}); err != nil {
		return err
	}
	return app.Bind(routing.ControllerDispatcherKey, func(c *container.Container) any {
		return routing.NewControllerDispatcher(c)
	})
}

// ── ExceptionServiceProvider ──────────────────────────────────────────────────

// ExceptionServiceProvider binds the exception handler. It is deferred: the
// handler is built the first time the kernel needs it.
//
// Bound abstracts:
//   - "exceptions.handler" → *exceptions.Handler
//
// Laravel equivalent:
//
//	$app->singleton(ExceptionHandler::class, App\Exceptions\Handler::class);
type ExceptionServiceProvider struct {
	container.BaseProvider
}

func (p *ExceptionServiceProvider) Register(app *container.Container) error {
	return app.Singleton(ExceptionHandlerKey, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, ConfigKey)
		if err != nil {
			return nil, err
		}
		logger, err := container.Resolve[*logrus.Logger](c, LogKey)
		if err != nil {
			return nil, err
		}
		return exceptions.NewHandler(logger, cfg.App.Debug), nil
	})
}

func (p *ExceptionServiceProvider) Provides() []string { return []string{ExceptionHandlerKey} }

func (p *ExceptionServiceProvider) IsDeferred() bool { return true }

// ── MiddlewareServiceProvider ─────────────────────────────────────────────────

// MiddlewareServiceProvider binds the framework middleware under the
// abstracts the HTTP kernel aliases.
//
// Bound abstracts:
//   - "middleware.throttle"      → *middleware.Throttle (shared buckets)
//   - "middleware.auth"          → *middleware.Authenticate (per scope, needs "auth.verifier")
//   - "middleware.precognitive"  → *middleware.HandlePrecognitiveRequests (per scope)
//   - "middleware.cors"          → *middleware.HandleCors
//   - "middleware.log"           → *middleware.LogRequests
//   - "middleware.metrics"       → *middleware.Metrics
//   - "metrics.registry"         → *prometheus.Registry
type MiddlewareServiceProvider struct {
	container.BaseProvider
}

func (p *MiddlewareServiceProvider) Register(app *container.Container) error {
	bindings := []struct {
		abstract string
		shared   bool
		factory  func(c *container.Container) (any, error)
	}{
		{ThrottleMiddlewareKey, true, func(c *container.Container) (any, error) {
			cfg, err := container.Resolve[*config.Config](c, ConfigKey)
			if err != nil {
				return nil, err
			}
			return middleware.NewThrottle(cfg.Throttle.Limiters), nil
		}},
		{AuthMiddlewareKey, false, func(c *container.Container) (any, error) {
			if !c.Bound(TokenVerifierKey) {
				return nil, fmt.Errorf("auth middleware: %w: no [%s] is bound",
					container.ErrInvalidConfiguration, TokenVerifierKey)
			}
			verifier, err := container.Resolve[middleware.TokenVerifier](c, TokenVerifierKey)
			if err != nil {
				return nil, err
			}
			return middleware.NewAuthenticate(verifier, c), nil
		}},
		{PrecognitionMiddlewareKey, false, func(c *container.Container) (any, error) {
			return middleware.NewHandlePrecognitiveRequests(c), nil
		}},
		{CorsMiddlewareKey, true, func(c *container.Container) (any, error) {
			cfg, err := container.Resolve[*config.Config](c, ConfigKey)
			if err != nil {
				return nil, err
			}
			return middleware.NewHandleCors(cfg.CORS), nil
		}},
		{LogMiddlewareKey, true, func(c *container.Container) (any, error) {
			logger, err := container.Resolve[*logrus.Logger](c, LogKey)
			if err != nil {
				return nil, err
			}
			return middleware.NewLogRequests(logger), nil
		}},
		{MetricsRegistryKey, true, func(*container.Container) (any, error) {
			return prometheus.NewRegistry(), nil
		}},
		{MetricsMiddlewareKey, true, func(c *container.Container) (any, error) {
			reg, err := container.Resolve[*prometheus.Registry](c, MetricsRegistryKey)
			if err != nil {
				return nil, err
			}
			return middleware.NewMetrics(middleware.WithRegistry(reg)), nil
		}},
	}

	for _, b := range bindings {
		var err error
		if b.shared {
			err = app.Singleton(b.abstract, b.factory)
		} else {
			err = app.Bind(b.abstract, b.factory)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
