package container

import (
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Param describes one parameter of a Callable.
type Param struct {
	// Name is matched against override frames and route parameters.
	// Unnamed parameters can only be resolved by type or default.
	Name string

	// Abstract is the container key used to resolve the parameter by type.
	// Empty for primitives (strings, numbers, bools, unnamed composites).
	Abstract string

	Type       reflect.Type
	Default    any
	HasDefault bool
	Variadic   bool
}

// IsPrimitive reports whether the parameter cannot be resolved by type.
func (p Param) IsPrimitive() bool { return p.Abstract == "" }

func (p Param) String() string {
	name := p.Name
	if name == "" {
		name = "_"
	}
	if p.Variadic {
		return fmt.Sprintf("%s ...%s", name, p.Type.Elem())
	}
	return fmt.Sprintf("%s %s", name, p.Type)
}

// Callable is a Go function together with the parameter metadata the
// container needs to inject it: names come from the caller, types from the
// function signature. It replaces constructor reflection on arbitrary types.
//
//	// Laravel: public function __construct(UserRepository $users, string $table = 'users')
//	container.Fn(NewUserService, "users", "table").Default("table", "users")
type Callable struct {
	fn     reflect.Value
	name   string
	params []Param
}

// Fn describes fn, labelling its parameters in order with names.
// It panics when fn is not a function; use NewCallable to get an error.
func Fn(fn any, names ...string) *Callable {
	c, err := NewCallable(fn, names...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCallable is Fn returning an error instead of panicking.
// A *Callable is returned unchanged.
func NewCallable(fn any, names ...string) (*Callable, error) {
	if c, ok := fn.(*Callable); ok {
		return c, nil
	}

	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, invalidConfig("callable must be a non-nil function, got %T", fn)
	}
	t := v.Type()

	if len(names) > t.NumIn() {
		return nil, invalidConfig("%d names given for a function with %d parameters", len(names), t.NumIn())
	}
	switch t.NumOut() {
	case 0, 1:
	case 2:
		if !t.Out(1).Implements(errorType) {
			return nil, invalidConfig("second return value of %s must implement error", t)
		}
	default:
		return nil, invalidConfig("callable %s must return at most (T, error)", t)
	}

	params := make([]Param, t.NumIn())
	for i := range params {
		pt := t.In(i)
		variadic := t.IsVariadic() && i == t.NumIn()-1
		target := pt
		if variadic {
			target = pt.Elem()
		}
		params[i] = Param{Type: pt, Variadic: variadic, Abstract: abstractFor(target)}
		if i < len(names) {
			params[i].Name = names[i]
		}
	}

	name := t.String()
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		name = f.Name()
	}

	return &Callable{fn: v, name: name, params: params}, nil
}

// Default sets the value used when the named parameter cannot be resolved.
func (c *Callable) Default(name string, value any) *Callable {
	c.param(name).HasDefault = true
	c.param(name).Default = value
	return c
}

// Needs makes the named parameter resolve through abstract instead of its
// declared type.
func (c *Callable) Needs(name, abstract string) *Callable {
	c.param(name).Abstract = abstract
	return c
}

// Label returns a copy of c in which each unnamed parameter i takes
// names[i]. Empty entries and already named parameters are left alone.
func (c *Callable) Label(names ...string) *Callable {
	out := &Callable{fn: c.fn, name: c.name, params: c.Params()}
	for i, name := range names {
		if i < len(out.params) && name != "" && out.params[i].Name == "" {
			out.params[i].Name = name
		}
	}
	return out
}

func (c *Callable) param(name string) *Param {
	for i := range c.params {
		if c.params[i].Name == name {
			return &c.params[i]
		}
	}
	panic(fmt.Sprintf("container: callable %s has no parameter named %q", c.name, name))
}

// Name returns the function name, for diagnostics.
func (c *Callable) Name() string { return c.name }

// Params returns a copy of the parameter metadata.
func (c *Callable) Params() []Param {
	out := make([]Param, len(c.params))
	copy(out, c.params)
	return out
}

// Invoke calls the function with one argument per parameter. The variadic
// slot, if any, holds a []any spread into the call.
func (c *Callable) Invoke(args []any) (any, error) {
	if len(args) != len(c.params) {
		return nil, invalidConfig("callable %s takes %d arguments, got %d", c.name, len(c.params), len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, p := range c.params {
		if p.Variadic {
			rest, _ := args[i].([]any)
			for _, v := range rest {
				rv, err := coerce(v, p.Type.Elem())
				if err != nil {
					return nil, c.argumentError(p, err)
				}
				in = append(in, rv)
			}
			continue
		}
		rv, err := coerce(args[i], p.Type)
		if err != nil {
			return nil, c.argumentError(p, err)
		}
		in = append(in, rv)
	}

	out := c.fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if c.fn.Type().Out(0) == errorType {
			err, _ := out[0].Interface().(error)
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		err, _ := out[1].Interface().(error)
		return out[0].Interface(), err
	}
}

func (c *Callable) argumentError(p Param, err error) error {
	return &BindingResolutionError{
		Message: fmt.Sprintf("Invalid argument for [%s] in [%s]", p, c.name),
		Err:     err,
	}
}

// ── Type keys ─────────────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// abstract key when working with interfaces.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "main.UserRepository"
//	c.Singleton(key, factory)
//	repo, err := container.Resolve[UserRepository](c, key)
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	return typeKey(t)
}

func typeKey(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// abstractFor returns the container key for a parameter type, or "" when
// the type can only be satisfied by name or default.
func abstractFor(t reflect.Type) string {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" || base.PkgPath() == "" || isScalar(base.Kind()) {
		return ""
	}
	return typeKey(base)
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	return isScalar(k) && k != reflect.Bool && k != reflect.String
}

// coerce converts v to t. Route parameters arrive as strings, so strings
// are parsed into numeric and boolean kinds.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if s, ok := v.(string); ok {
		return parseScalar(strings.TrimSpace(s), t)
	}

	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

func parseScalar(s string, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	default:
		return reflect.Value{}, fmt.Errorf("cannot use string as %s", t)
	}
	return out, nil
}
