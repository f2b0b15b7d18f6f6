// Package pipeline implements Laravel's onion-style Pipeline: a payload is
// sent through an ordered list of stages, each of which either calls the next
// stage or answers on its own.
//
//	// Laravel: (new Pipeline($app))->send($request)->through($middleware)->then($destination)
//	res, err := pipeline.New[*Request, *Response](c).
//	    Send(req).
//	    Through("throttle:60,1", auth, logRequests).
//	    Then(dispatch)
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/km-arc/go-laravel-kernel/framework/container"
)

// ErrNextCalledTwice is returned when a stage calls its continuation more
// than once during a single pass.
var ErrNextCalledTwice = errors.New("pipeline: next called more than once")

// Handler is a continuation: it carries the payload to the rest of the
// pipeline and returns whatever the inner layers produced.
type Handler[T, R any] func(T) (R, error)

// Stage is the middleware contract: Handle either calls next exactly once
// or returns its own result to short-circuit the pipeline.
type Stage[T, R any] interface {
	Handle(payload T, next Handler[T, R]) (R, error)
}

// ParameterizedStage receives the parameters written after the colon of a
// stage name ("throttle:60,1" → ["60", "1"]).
type ParameterizedStage[T, R any] interface {
	HandleWith(payload T, next Handler[T, R], params []string) (R, error)
}

// StageFunc adapts a plain function to Stage.
type StageFunc[T, R any] func(payload T, next Handler[T, R]) (R, error)

// Handle calls f(payload, next).
func (f StageFunc[T, R]) Handle(payload T, next Handler[T, R]) (R, error) {
	return f(payload, next)
}

// Pipeline threads a payload through stages. A Pipeline is built and run
// once per request; it is not safe for concurrent use.
type Pipeline[T, R any] struct {
	container *container.Container
	passable  T
	pipes     []any
}

// New creates a pipeline resolving named stages from c (which may be nil
// when every stage is a value).
func New[T, R any](c *container.Container) *Pipeline[T, R] {
	return &Pipeline[T, R]{container: c}
}

// Send sets the payload.
func (p *Pipeline[T, R]) Send(passable T) *Pipeline[T, R] {
	p.passable = passable
	return p
}

// Through replaces the stage list. Each stage is a Stage, a
// ParameterizedStage, a StageFunc, a func(T, Handler[T, R]) (R, error) or
// a container abstract optionally followed by ":p1,p2".
func (p *Pipeline[T, R]) Through(pipes ...any) *Pipeline[T, R] {
	p.pipes = append([]any(nil), pipes...)
	return p
}

// Pipe appends stages to the list.
func (p *Pipeline[T, R]) Pipe(pipes ...any) *Pipeline[T, R] {
	p.pipes = append(p.pipes, pipes...)
	return p
}

// Then runs the pipeline with destination as the innermost handler.
// Errors returned by any stage propagate unchanged.
func (p *Pipeline[T, R]) Then(destination Handler[T, R]) (R, error) {
	next := destination
	for i := len(p.pipes) - 1; i >= 0; i-- {
		next = p.carry(p.pipes[i], once(next))
	}
	return next(p.passable)
}

// carry wraps a single stage around the rest of the onion.
func (p *Pipeline[T, R]) carry(pipe any, next Handler[T, R]) Handler[T, R] {
	return func(passable T) (R, error) {
		var zero R

		switch stage := pipe.(type) {
		case ParameterizedStage[T, R]:
			return stage.HandleWith(passable, next, nil)
		case Stage[T, R]:
			return stage.Handle(passable, next)
		case func(T, Handler[T, R]) (R, error):
			return stage(passable, next)
		case string:
			resolved, params, err := p.resolve(stage)
			if err != nil {
				return zero, err
			}
			switch s := resolved.(type) {
			case ParameterizedStage[T, R]:
				return s.HandleWith(passable, next, params)
			case Stage[T, R]:
				return s.Handle(passable, next)
			case func(T, Handler[T, R]) (R, error):
				return s(passable, next)
			}
			return zero, fmt.Errorf("pipeline: %w: [%s] resolved to %T, which is not a stage",
				container.ErrInvalidConfiguration, stage, resolved)
		}
		return zero, fmt.Errorf("pipeline: %w: unsupported stage %T", container.ErrInvalidConfiguration, pipe)
	}
}

func (p *Pipeline[T, R]) resolve(pipe string) (any, []string, error) {
	name, params := Parse(pipe)
	if p.container == nil {
		return nil, nil, fmt.Errorf("pipeline: %w: no container to resolve [%s]", container.ErrInvalidConfiguration, name)
	}
	stage, err := p.container.Make(name)
	if err != nil {
		return nil, nil, err
	}
	return stage, params, nil
}

// Parse splits a stage name into the abstract and its parameters.
//
//	Parse("throttle:60,1") // "throttle", ["60", "1"]
func Parse(pipe string) (string, []string) {
	name, raw, found := strings.Cut(pipe, ":")
	if !found || raw == "" {
		return name, nil
	}
	return name, strings.Split(raw, ",")
}

// once guards next so a stage cannot run the inner layers twice.
func once[T, R any](next Handler[T, R]) Handler[T, R] {
	called := false
	return func(passable T) (R, error) {
		if called {
			var zero R
			return zero, ErrNextCalledTwice
		}
		called = true
		return next(passable)
	}
}
