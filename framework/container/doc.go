// Package container provides a Laravel-compatible IoC (Inversion of Control)
// container and Service Provider system for Go.
//
// # Overview
//
// The container manages the instantiation and lifecycle of your application's
// dependencies. It supports transient bindings, singletons, pre-built instances,
// aliases, tags, contextual bindings, extension (decoration) and per-request
// scopes.
//
// Go has no runtime constructor reflection, so auto-wiring works from explicit
// constructor metadata: a [Callable] couples a Go function with the names of
// its parameters, and its types become the abstract keys of its
// dependencies.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot()        — safe to resolve everything after this
//  4. Serve requests, each inside c.Scope()
//
// # Bindings
//
//	// Transient — new instance every Make()
//	// Laravel: $app->bind(Foo::class, fn($app) => new Foo)
//	c.Bind("Foo", func(c *container.Container) any { return &Foo{} })
//
//	// Singleton — created once, reused
//	c.Singleton("cache", func(c *container.Container, p container.Params) (any, error) {
//	    return cache.NewRedis(container.MustResolve[*Config](c, "config"))
//	})
//
//	// Pre-built value
//	c.Instance("config", myConfig)
//
//	// Alias — fails with ErrInvalidConfiguration when aliased to itself
//	c.Alias("cache", "cacheManager")
//
// # Constructors
//
//	// Laravel: class Mailer { public function __construct(Transport $t, string $from = 'noreply@app') }
//	c.Provide(NewMailer, "transport", "from")
//	c.Define(container.TypeKey((*Mailer)(nil)),
//	    container.Fn(NewMailer, "transport", "from").Default("from", "noreply@app"))
//
//	// Unbound types with a constructor are built fresh on every Make.
//	m, err := c.Make(container.TypeKey((*Mailer)(nil)), container.Params{"from": "ops@app"})
//
// Parameters resolve from the override params by name, then from the
// container by type, then from their default. Resolving an abstract that is
// already under construction fails with [CircularDependencyError].
//
// # Calling functions
//
//	out, err := c.Call(container.Fn(report.Generate, "format"), container.Params{"format": "pdf"})
//
// # Contextual Binding
//
//	c.When("PhotoController").
//	    Needs("Filesystem").
//	    GiveValue(&S3Filesystem{})
//
// # Tags
//
//	c.Tag([]string{"CpuReport", "MemReport"}, "reports")
//	reports, err := c.Tagged("reports")  // []any
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.Singleton("mailer", func(c *container.Container) any {
//	        return mail.NewSMTP(container.MustResolve[*config.Config](c, "config").Mail)
//	    })
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//
// A deferred provider is registered the first time one of its abstracts is
// resolved.
package container
