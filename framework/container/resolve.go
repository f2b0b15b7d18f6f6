package container

import (
	"errors"
	"fmt"
	"slices"
)

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves an abstract from the container. Override params bypass the
// singleton cache and are visible to the constructor of abstract only.
//
//	// Laravel: $app->make(UserRepository::class)
//	repo, err := c.Make("UserRepository")
func (c *Container) Make(abstract string, params ...Params) (any, error) {
	return c.resolve(abstract, mergeParams(params), true)
}

// MustMake is Make for bootstrap code; it panics on error.
func (c *Container) MustMake(abstract string, params ...Params) any {
	v, err := c.Make(abstract, params...)
	if err != nil {
		panic(err)
	}
	return v
}

// Get resolves id, reporting ErrEntryNotFound when nothing at all is
// registered under that name.
func (c *Container) Get(id string) (any, error) {
	v, err := c.Make(id)
	if err == nil {
		return v, nil
	}
	var bre *BindingResolutionError
	if errors.As(err, &bre) && !c.Has(id) {
		return nil, fmt.Errorf("container: %w: [%s]: %w", ErrEntryNotFound, id, err)
	}
	return nil, err
}

// Call invokes fn, injecting its parameters: named values from params
// first, then the container by declared type, then declared defaults.
// fn may be any function or a *Callable carrying parameter names.
//
//	// Laravel: $app->call([$report, 'generate'], ['format' => 'pdf'])
//	out, err := c.Call(container.Fn(report.Generate, "format"), container.Params{"format": "pdf"})
func (c *Container) Call(fn any, params Params) (any, error) {
	callable, err := NewCallable(fn)
	if err != nil {
		return nil, err
	}
	args, err := c.ResolveArguments(callable, params)
	if err != nil {
		return nil, err
	}
	return callable.Invoke(args)
}

// ResolveArguments resolves one argument per parameter of fn, in order.
func (c *Container) ResolveArguments(fn *Callable, params Params) ([]any, error) {
	args := make([]any, len(fn.params))
	for i, p := range fn.params {
		if p.Name != "" {
			if v, ok := params[p.Name]; ok {
				if p.Variadic {
					args[i] = spread(v)
				} else {
					args[i] = v
				}
				continue
			}
		}

		if p.Variadic {
			rest, err := c.resolveVariadic(p)
			if err != nil {
				return nil, err
			}
			args[i] = rest
			continue
		}

		if !p.IsPrimitive() {
			v, err := c.Make(p.Abstract)
			if err == nil {
				args[i] = v
				continue
			}
			if !p.HasDefault || IsCircular(err) {
				return nil, err
			}
		}

		if p.HasDefault {
			args[i] = p.Default
			continue
		}

		return nil, &BindingResolutionError{
			Stack:   c.stackSnapshot(),
			Message: fmt.Sprintf("Unresolvable dependency resolving [%s] in [%s]", p, fn.name),
		}
	}
	return args, nil
}

// resolveVariadic collects the values for a variadic parameter: every
// service tagged with its abstract, else the single bound value, else none.
func (c *Container) resolveVariadic(p Param) ([]any, error) {
	if p.IsPrimitive() {
		return []any{}, nil
	}
	if c.hasTag(p.Abstract) {
		return c.Tagged(p.Abstract)
	}
	if !c.Bound(p.Abstract) {
		if _, ok := c.lookupConstructor(p.Abstract); !ok {
			return []any{}, nil
		}
	}
	v, err := c.Make(p.Abstract)
	if err != nil {
		if IsCircular(err) {
			return nil, err
		}
		return []any{}, nil
	}
	return spread(v), nil
}

// resolve is the internal resolver; it never holds the lock while running
// factories.
func (c *Container) resolve(abstract string, params Params, raiseEvents bool) (any, error) {
	abstract, err := c.getAlias(abstract)
	if err != nil {
		return nil, err
	}

	if raiseEvents {
		if err := c.fireBeforeResolving(abstract); err != nil {
			return nil, err
		}
	}

	contextual := c.contextualConcrete(abstract)
	needsContextualBuild := len(params) > 0 || contextual != nil

	// Check singleton instance cache
	if !needsContextualBuild {
		if inst, ok := c.lookupInstance(abstract); ok {
			return inst, nil
		}
	}

	if slices.Contains(c.buildStack, abstract) {
		chain := append(c.stackSnapshot(), abstract)
		if i := slices.Index(chain, abstract); i > 0 {
			chain = chain[i:]
		}
		return nil, &CircularDependencyError{Chain: chain}
	}

	c.with = append(c.with, params)
	c.buildStack = append(c.buildStack, abstract)
	defer func() {
		c.with = c.with[:len(c.with)-1]
		c.buildStack = c.buildStack[:len(c.buildStack)-1]
	}()

	var (
		object any
		b      *binding
		owner  *Container
	)
	switch {
	case contextual != nil:
		object, err = contextual(c, params)
	default:
		b, owner = c.lookupBinding(abstract)
		if b != nil {
			object, err = b.factory(c, params)
		} else {
			object, err = c.build(abstract)
		}
	}
	if err != nil {
		return nil, err
	}

	object = c.applyExtenders(abstract, object)

	if b != nil && b.shared && !needsContextualBuild {
		object = owner.storeShared(abstract, object)
	}

	c.markResolved(abstract)
	if owner != nil && owner != c {
		owner.markResolved(abstract)
	}

	if raiseEvents {
		c.fireAfterResolving(abstract, object)
	}
	return object, nil
}

// build instantiates abstract from its registered constructor.
func (c *Container) build(abstract string) (any, error) {
	fn, ok := c.lookupConstructor(abstract)
	if !ok {
		return nil, c.notInstantiable(abstract)
	}
	return c.buildCallable(fn)
}

func (c *Container) buildCallable(fn *Callable) (any, error) {
	args, err := c.ResolveArguments(fn, c.lastOverride())
	if err != nil {
		return nil, err
	}
	v, err := fn.Invoke(args)
	if err != nil {
		var bre *BindingResolutionError
		if errors.As(err, &bre) {
			return nil, err
		}
		return nil, &BindingResolutionError{
			Abstract: c.current(),
			Stack:    c.stackSnapshot(),
			Message:  fmt.Sprintf("Constructor [%s] failed", fn.name),
			Err:      err,
		}
	}
	return v, nil
}

func (c *Container) notInstantiable(abstract string) error {
	stack := c.stackSnapshot()
	if n := len(stack); n > 0 && stack[n-1] == abstract {
		stack = stack[:n-1]
	}
	return &BindingResolutionError{
		Abstract: abstract,
		Stack:    stack,
		Message:  fmt.Sprintf("Target [%s] is not instantiable", abstract),
	}
}

func (c *Container) lastOverride() Params {
	if len(c.with) == 0 {
		return nil
	}
	return c.with[len(c.with)-1]
}

func (c *Container) current() string {
	if len(c.buildStack) == 0 {
		return ""
	}
	return c.buildStack[len(c.buildStack)-1]
}

func (c *Container) stackSnapshot() []string {
	return slices.Clone(c.buildStack)
}

func mergeParams(params []Params) Params {
	switch len(params) {
	case 0:
		return nil
	case 1:
		return params[0]
	}
	out := Params{}
	for _, p := range params {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// spread turns a slice value into variadic arguments.
func spread(v any) []any {
	switch s := v.(type) {
	case nil:
		return []any{}
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	}
	return []any{v}
}
