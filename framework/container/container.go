package container

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Params are named override values for a single resolution.
//
//	// Laravel: $app->make(Report::class, ['format' => 'pdf'])
//	c.Make("Report", container.Params{"format": "pdf"})
type Params map[string]any

// Factory is a function that builds a concrete value from the container.
// params is the override frame of the current resolution (may be nil).
type Factory func(c *Container, params Params) (any, error)

// binding holds a registered factory and whether it is a singleton.
type binding struct {
	factory Factory
	shared  bool
}

// Extender wraps an already-resolved instance with decorator logic.
type Extender func(instance any, c *Container) any

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the IoC container — mirrors Laravel's Illuminate\Container\Container.
//
// It supports:
//   - Bind / Singleton / Instance / Alias
//   - Make / Get / Call / Resolve (generic)
//   - Constructor metadata (Provide / Define) for dependency-driven builds
//   - Tags, Extend, contextual binding
//   - Rebound, before- and after-resolving callbacks
//   - Scopes (per-request child containers)
//
// Registration is safe for concurrent use. Resolution keeps a build stack
// and a parameter-override stack, so a single Container must only resolve
// on one goroutine at a time: hand each request its own Scope.
type Container struct {
	mu sync.RWMutex

	// parent is consulted for everything not registered here
	parent *Container

	// abstract → binding
	bindings map[string]*binding

	// abstract → constructor used when there is no binding
	constructors map[string]*Callable

	// abstract → resolved singleton instance
	instances map[string]any

	// abstract → resolved at least once
	resolved map[string]bool

	// alias → abstract
	aliases map[string]string

	// abstract → aliases pointing at it
	abstractAliases map[string][]string

	// abstract → extender funcs
	extenders map[string][]Extender

	// tag → []abstract
	tags map[string][]string

	// contextual: when[concrete][abstract] = factory
	contextual map[string]map[string]Factory

	// rebound callbacks: abstract → []func(any)
	reboundCallbacks map[string][]func(any)

	beforeResolving []func(c *Container, abstract string) error
	afterResolving  []func(string, any)

	// abstracts currently under construction, innermost last
	buildStack []string

	// parameter override frames, innermost last
	with []Params
}

// New creates an empty container.
func New() *Container {
	c := newContainer(nil)
	// Bind the container to itself — like Laravel's $app->instance()
	c.Instance("container", c)
	return c
}

func newContainer(parent *Container) *Container {
	return &Container{
		parent:           parent,
		bindings:         make(map[string]*binding),
		constructors:     make(map[string]*Callable),
		instances:        make(map[string]any),
		resolved:         make(map[string]bool),
		aliases:          make(map[string]string),
		abstractAliases:  make(map[string][]string),
		extenders:        make(map[string][]Extender),
		tags:             make(map[string][]string),
		contextual:       make(map[string]map[string]Factory),
		reboundCallbacks: make(map[string][]func(any)),
	}
}

// Scope creates a child container. Bindings, aliases and constructors of
// the parent stay visible; shared instances of parent bindings are cached
// in the parent. Instances and bindings registered on the scope stay local.
//
//	scope := app.Scope()
//	scope.Instance("request", req)
func (c *Container) Scope() *Container {
	s := newContainer(c)
	s.Instance("container", s)
	return s
}

// Parent returns the container this scope was created from, or nil.
func (c *Container) Parent() *Container { return c.parent }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a transient (new instance each Make) binding.
//
// concrete may be nil (build abstract from its constructor), a Factory,
// a func(*Container) any, a *Callable, or the name of another abstract.
//
//	// Laravel: $app->bind(UserRepository::class, fn($app) => new EloquentUserRepository($app))
//	c.Bind("UserRepository", func(c *container.Container) any {
//	    return &EloquentUserRepository{DB: container.MustResolve[*sql.DB](c, "db")}
//	})
func (c *Container) Bind(abstract string, concrete any) error {
	return c.bind(abstract, concrete, false)
}

// Singleton registers a binding whose result is cached after first resolution.
//
//	// Laravel: $app->singleton(Cache::class, fn($app) => new RedisCache($app))
//	c.Singleton("cache", func(c *container.Container) any {
//	    return cache.NewRedisCache(container.MustResolve[*config.Config](c, "config"))
//	})
func (c *Container) Singleton(abstract string, concrete any) error {
	return c.bind(abstract, concrete, true)
}

// bind is the internal registration helper.
func (c *Container) bind(abstract string, concrete any, shared bool) error {
	if abstract == "" {
		return invalidConfig("abstract name cannot be empty")
	}
	factory, err := factoryFor(abstract, concrete)
	if err != nil {
		return err
	}

	c.mu.Lock()
	// Drop stale instance and alias so it's rebuilt with the new factory
	delete(c.instances, abstract)
	c.removeAbstractAlias(abstract)
	delete(c.aliases, abstract)
	c.bindings[abstract] = &binding{factory: factory, shared: shared}
	c.mu.Unlock()

	if c.Resolved(abstract) {
		return c.rebound(abstract)
	}
	return nil
}

func factoryFor(abstract string, concrete any) (Factory, error) {
	switch f := concrete.(type) {
	case nil:
		return func(c *Container, _ Params) (any, error) { return c.build(abstract) }, nil
	case Factory:
		return f, nil
	case func(*Container, Params) (any, error):
		return f, nil
	case func(*Container) (any, error):
		return func(c *Container, _ Params) (any, error) { return f(c) }, nil
	case func(*Container) any:
		return func(c *Container, _ Params) (any, error) { return f(c), nil }, nil
	case *Callable:
		return func(c *Container, _ Params) (any, error) { return c.buildCallable(f) }, nil
	case string:
		if f == abstract {
			return func(c *Container, _ Params) (any, error) { return c.build(abstract) }, nil
		}
		return func(c *Container, p Params) (any, error) { return c.resolve(f, p, false) }, nil
	}
	return nil, invalidConfig("binding for [%s] must be nil, a Factory, a *Callable or an abstract name, got %T", abstract, concrete)
}

// Instance registers a pre-built value as a singleton.
//
//	// Laravel: $app->instance(Config::class, $config)
//	c.Instance("config", myConfig)
func (c *Container) Instance(abstract string, instance any) {
	isBound := c.Bound(abstract)

	c.mu.Lock()
	c.removeAbstractAlias(abstract)
	delete(c.aliases, abstract)
	c.instances[abstract] = instance
	c.mu.Unlock()

	if isBound {
		c.fireRebound(abstract, instance)
	}
}

// removeAbstractAlias drops searched from the alias lists (must hold mu.Lock).
func (c *Container) removeAbstractAlias(searched string) {
	if _, ok := c.aliases[searched]; !ok {
		return
	}
	for abstract, aliases := range c.abstractAliases {
		kept := aliases[:0]
		for _, a := range aliases {
			if a != searched {
				kept = append(kept, a)
			}
		}
		c.abstractAliases[abstract] = kept
	}
}

// Alias registers an alternative name for an abstract.
//
//	// Laravel: $app->alias(Cache::class, 'cache')
//	c.Alias("cache", "cacheManager")
func (c *Container) Alias(abstract, alias string) error {
	if abstract == alias {
		return invalidConfig("[%s] is aliased to itself", abstract)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = abstract
	c.abstractAliases[abstract] = append(c.abstractAliases[abstract], alias)
	return nil
}

// Provide registers constructor as the way to build its first return type
// when no binding exists. names label the constructor's parameters so
// override params can target them.
//
//	c.Provide(NewMailer, "host", "port")
//	m, err := container.Resolve[*Mailer](c, container.TypeKey((*Mailer)(nil)))
func (c *Container) Provide(constructor any, names ...string) error {
	fn, err := NewCallable(constructor, names...)
	if err != nil {
		return err
	}
	out := fn.fn.Type()
	if out.NumOut() == 0 || out.Out(0) == errorType {
		return invalidConfig("constructor %s must return a value", fn.name)
	}
	c.Define(typeKey(out.Out(0)), fn)
	return nil
}

// Define registers fn as the constructor for abstract.
func (c *Container) Define(abstract string, fn *Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructors[abstract] = fn
}

// ── Contextual Binding ────────────────────────────────────────────────────────

// When starts a contextual binding chain.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(fn() => new S3)
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container, _ container.Params) (any, error) {
//	    return filesystem.NewS3(...), nil
//	})
func (c *Container) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{container: c, concrete: concrete}
}

// contextualConcrete returns the contextual factory for abstract when it is
// being resolved on behalf of the innermost build, or nil.
func (c *Container) contextualConcrete(abstract string) Factory {
	if len(c.buildStack) == 0 {
		return nil
	}
	caller := c.buildStack[len(c.buildStack)-1]
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		f := cur.contextual[caller][abstract]
		cur.mu.RUnlock()
		if f != nil {
			return f
		}
	}
	return nil
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of an abstract.
//
//	// Laravel: $app->extend(Logger::class, fn($logger, $app) => new TimestampLogger($logger))
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return logging.NewTimestampWrapper(instance.(*Logger))
//	})
func (c *Container) Extend(abstract string, fn Extender) {
	key := c.canonical(abstract)

	c.mu.Lock()
	c.extenders[key] = append(c.extenders[key], fn)
	inst, ok := c.instances[key]
	c.mu.Unlock()
	if !ok {
		return
	}

	// Already resolved as singleton: decorate it and refire rebound
	inst = fn(inst, c)
	c.mu.Lock()
	c.instances[key] = inst
	c.mu.Unlock()
	c.fireRebound(key, inst)
}

func (c *Container) applyExtenders(key string, instance any) any {
	var chain []*Container
	for cur := c; cur != nil; cur = cur.parent {
		chain = append([]*Container{cur}, chain...)
	}
	for _, cur := range chain {
		cur.mu.RLock()
		exts := cur.extenders[key]
		cur.mu.RUnlock()
		for _, ext := range exts {
			instance = ext(instance, c)
		}
	}
	return instance
}

// ── Tags ──────────────────────────────────────────────────────────────────────

// Tag associates multiple abstracts under a named group.
//
//	// Laravel: $app->tag([CpuReport::class, MemoryReport::class], 'reports')
//	c.Tag([]string{"CpuReport", "MemoryReport"}, "reports")
func (c *Container) Tag(abstracts []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], abstracts...)
}

// Tagged resolves all abstracts registered under a tag.
//
//	// Laravel: $app->tagged('reports')
//	reports, err := c.Tagged("reports")  // []any
func (c *Container) Tagged(tag string) ([]any, error) {
	abstracts := c.taggedAbstracts(tag)
	result := make([]any, 0, len(abstracts))
	for _, abs := range abstracts {
		v, err := c.Make(abs)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (c *Container) taggedAbstracts(tag string) []string {
	var out []string
	if c.parent != nil {
		out = c.parent.taggedAbstracts(tag)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(out, c.tags[tag]...)
}

func (c *Container) hasTag(tag string) bool {
	return len(c.taggedAbstracts(tag)) > 0
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if an abstract has been registered.
//
//	// Laravel: $app->bound(UserRepository::class)
func (c *Container) Bound(abstract string) bool {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		_, hasBinding := cur.bindings[abstract]
		_, hasInstance := cur.instances[abstract]
		_, isAlias := cur.aliases[abstract]
		cur.mu.RUnlock()
		if hasBinding || hasInstance || isAlias {
			return true
		}
	}
	return false
}

// Has is Bound under its PSR-11 name.
func (c *Container) Has(id string) bool { return c.Bound(id) }

// Resolved returns true if the abstract has been resolved at least once.
//
//	// Laravel: $app->resolved(Cache::class)
func (c *Container) Resolved(abstract string) bool {
	key := c.canonical(abstract)
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		_, hasInstance := cur.instances[key]
		resolved := cur.resolved[key]
		cur.mu.RUnlock()
		if hasInstance || resolved {
			return true
		}
	}
	return false
}

// IsShared reports whether abstract resolves to a cached instance.
func (c *Container) IsShared(abstract string) bool {
	if _, ok := c.lookupInstance(abstract); ok {
		return true
	}
	b, _ := c.lookupBinding(abstract)
	return b != nil && b.shared
}

// IsAlias reports whether name is registered as an alias.
func (c *Container) IsAlias(name string) bool {
	_, ok := c.lookupAlias(name)
	return ok
}

// AliasesOf lists the aliases registered in c for abstract.
func (c *Container) AliasesOf(abstract string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.abstractAliases[abstract])
}

// ForgetInstance drops the cached instance of an abstract, keeping its binding.
//
//	// Laravel: $app->forgetInstance(Cache::class)
func (c *Container) ForgetInstance(abstract string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.instances, abstract)
}

// Forget removes all registrations for an abstract (binding + instance).
func (c *Container) Forget(abstract string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := abstract
	if target, ok := c.aliases[abstract]; ok {
		key = target
	}
	delete(c.bindings, key)
	delete(c.instances, key)
	delete(c.resolved, key)
}

// Flush resets the entire container.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = make(map[string]*binding)
	c.constructors = make(map[string]*Callable)
	c.instances = make(map[string]any)
	c.resolved = make(map[string]bool)
	c.aliases = make(map[string]string)
	c.abstractAliases = make(map[string][]string)
	c.extenders = make(map[string][]Extender)
	c.tags = make(map[string][]string)
	c.contextual = make(map[string]map[string]Factory)
	c.reboundCallbacks = make(map[string][]func(any))
}

// Bindings returns a copy of all registered abstract keys (for debugging).
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	return out
}

// ── Lookups (walk the scope chain) ────────────────────────────────────────────

func (c *Container) lookupBinding(key string) (*binding, *Container) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.bindings[key]
		cur.mu.RUnlock()
		if ok {
			return b, cur
		}
	}
	return nil, nil
}

func (c *Container) lookupInstance(key string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		inst, ok := cur.instances[key]
		cur.mu.RUnlock()
		if ok {
			return inst, true
		}
	}
	return nil, false
}

func (c *Container) lookupAlias(name string) (string, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		target, ok := cur.aliases[name]
		cur.mu.RUnlock()
		if ok {
			return target, true
		}
	}
	return "", false
}

func (c *Container) lookupConstructor(key string) (*Callable, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		fn, ok := cur.constructors[key]
		cur.mu.RUnlock()
		if ok {
			return fn, true
		}
	}
	return nil, false
}

// getAlias follows the alias chain to its canonical abstract.
func (c *Container) getAlias(name string) (string, error) {
	seen := map[string]bool{}
	for {
		target, ok := c.lookupAlias(name)
		if !ok {
			return name, nil
		}
		if seen[name] {
			return "", invalidConfig("alias cycle detected at [%s]", name)
		}
		seen[name] = true
		name = target
	}
}

// canonical is getAlias for callers that cannot fail.
func (c *Container) canonical(abstract string) string {
	if key, err := c.getAlias(abstract); err == nil {
		return key
	}
	return abstract
}

// storeShared caches instance unless another resolution got there first.
func (c *Container) storeShared(key string, instance any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.instances[key]; ok {
		return existing
	}
	c.instances[key] = instance
	return instance
}

func (c *Container) markResolved(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved[key] = true
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// Rebinding registers a callback to be called whenever an abstract is re-bound.
//
//	// Laravel: $app->rebinding(UserRepository::class, fn($app, $repo) => ...)
func (c *Container) Rebinding(abstract string, cb func(any)) {
	key := c.canonical(abstract)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reboundCallbacks[key] = append(c.reboundCallbacks[key], cb)
}

// BeforeResolving registers a callback fired before an abstract is looked
// up. Deferred service providers hook in here.
func (c *Container) BeforeResolving(cb func(c *Container, abstract string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeResolving = append(c.beforeResolving, cb)
}

// AfterResolving registers a callback fired after any abstract is resolved.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(cb func(abstract string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// rebound re-resolves abstract and hands the fresh value to its callbacks.
func (c *Container) rebound(abstract string) error {
	instance, err := c.Make(abstract)
	if err != nil {
		return fmt.Errorf("rebinding [%s]: %w", abstract, err)
	}
	c.fireRebound(abstract, instance)
	return nil
}

func (c *Container) fireRebound(abstract string, instance any) {
	key := c.canonical(abstract)
	c.mu.RLock()
	cbs := c.reboundCallbacks[key]
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(instance)
	}
}

func (c *Container) fireBeforeResolving(abstract string) error {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		cbs := cur.beforeResolving
		cur.mu.RUnlock()
		for _, cb := range cbs {
			if err := cb(c, abstract); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Container) fireAfterResolving(abstract string, instance any) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		cbs := cur.afterResolving
		cur.mu.RUnlock()
		for _, cb := range cbs {
			cb(abstract, instance)
		}
	}
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Make and type-asserts the result.
//
//	// Instead of: v, err := c.Make("db"); db := v.(*sql.DB)
//	// Write:      db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, abstract string) (T, error) {
	var zero T
	instance, err := c.Make(abstract)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &BindingResolutionError{
			Abstract: abstract,
			Message:  fmt.Sprintf("[%s] resolved to %T, not %T", abstract, instance, zero),
		}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error. Meant for bootstrap code
// and factories where a missing binding is a programming error.
func MustResolve[T any](c *Container, abstract string) T {
	typed, err := Resolve[T](c, abstract)
	if err != nil {
		panic(err)
	}
	return typed
}

// IsCircular reports whether err stems from a circular dependency.
func IsCircular(err error) bool {
	var cde *CircularDependencyError
	return errors.As(err, &cde)
}
