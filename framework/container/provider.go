package container

import (
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider.
//
// Every provider must implement at minimum Register().
// Boot() is called after ALL providers have been registered, making it safe
// to resolve other bindings inside Boot().
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.Singleton("mailer", func(c *container.Container) any {
//	        return mail.New(container.MustResolve[*config.Config](c, "config"))
//	    })
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here — use Boot() for that.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides returns the abstract keys a deferred provider registers.
	//
	//	// Laravel: public function provides(): array { return [Cache::class]; }
	Provides() []string

	// IsDeferred returns true if this provider should be loaded lazily —
	// only when one of its Provides() abstracts is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot(), Provides(), and IsDeferred().
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred (lazy) providers.
//
// It mirrors Laravel's Application::registerConfiguredProviders and
// Application::bootProviders.
type ProviderRegistry struct {
	app *Container

	mu       sync.Mutex
	eager    []ServiceProvider
	deferred map[string]ServiceProvider // abstract → provider
	loading  map[ServiceProvider]*deferredLoad
	seen     map[ServiceProvider]bool
	booted   bool
}

// deferredLoad makes concurrent resolvers of a deferred provider wait for
// its one registration.
type deferredLoad struct {
	once sync.Once
	err  error
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		app:      app,
		deferred: make(map[string]ServiceProvider),
		loading:  make(map[ServiceProvider]*deferredLoad),
		seen:     make(map[ServiceProvider]bool),
	}
	app.BeforeResolving(r.loadDeferred)
	return r
}

// Register adds a provider and calls its Register() method (unless deferred).
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.seen[provider] {
		r.mu.Unlock()
		return nil
	}
	r.seen[provider] = true

	if provider.IsDeferred() {
		for _, abstract := range provider.Provides() {
			r.deferred[abstract] = provider
		}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	return r.load(provider)
}

// load registers provider for real and boots it when the registry already has.
func (r *ProviderRegistry) load(provider ServiceProvider) error {
	if err := r.register(provider); err != nil {
		return err
	}
	return r.bootLoaded(provider)
}

func (r *ProviderRegistry) register(provider ServiceProvider) error {
	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("registering %T: %w", provider, err)
	}
	r.mu.Lock()
	r.eager = append(r.eager, provider)
	r.mu.Unlock()
	return nil
}

func (r *ProviderRegistry) bootLoaded(provider ServiceProvider) error {
	if !r.Booted() {
		return nil
	}
	if err := provider.Boot(r.app); err != nil {
		return fmt.Errorf("booting %T: %w", provider, err)
	}
	return nil
}

// loadDeferred is the BeforeResolving hook: the first Make() of a deferred
// abstract triggers the real registration. Concurrent callers block until
// Register has finished; the abstracts stay deferred until then.
func (r *ProviderRegistry) loadDeferred(_ *Container, abstract string) error {
	r.mu.Lock()
	provider, ok := r.deferred[abstract]
	var pending *deferredLoad
	if ok {
		pending = r.loading[provider]
		if pending == nil {
			pending = &deferredLoad{}
			r.loading[provider] = pending
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	var registered bool
	pending.once.Do(func() {
		pending.err = r.register(provider)
		registered = pending.err == nil

		r.mu.Lock()
		for _, abs := range provider.Provides() {
			delete(r.deferred, abs)
		}
		delete(r.loading, provider)
		r.mu.Unlock()
	})
	if pending.err != nil {
		return pending.err
	}
	// Boot runs outside the once so it may resolve its own abstracts.
	if registered {
		return r.bootLoaded(provider)
	}
	return nil
}

// Boot calls Boot() on all eager providers.
// Must be called after ALL providers have been registered.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("booting %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all loaded providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}

// Deferred reports whether abstract is still waiting on a deferred provider.
func (r *ProviderRegistry) Deferred(abstract string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.deferred[abstract]
	return ok
}
