package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/container"
	"github.com/km-arc/go-laravel-kernel/framework/pipeline"
)

type trace = []string

// tag appends name before and after the inner layers.
func tag(name string, log *trace) pipeline.StageFunc[string, string] {
	return func(payload string, next pipeline.Handler[string, string]) (string, error) {
		*log = append(*log, name+":in")
		out, err := next(payload + name)
		*log = append(*log, name+":out")
		return out, err
	}
}

type suffixStage struct{}

func (suffixStage) HandleWith(payload string, next pipeline.Handler[string, string], params []string) (string, error) {
	return next(payload + "[" + strings.Join(params, "|") + "]")
}

func TestThen_OnionOrder(t *testing.T) {
	var log trace
	out, err := pipeline.New[string, string](nil).
		Send("").
		Through(tag("A", &log), tag("B", &log)).
		Then(func(s string) (string, error) {
			log = append(log, "core")
			return s + "!", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "AB!", out)
	assert.Equal(t, trace{"A:in", "B:in", "core", "B:out", "A:out"}, log)
}

func TestThen_NoStagesRunsDestination(t *testing.T) {
	out, err := pipeline.New[int, int](nil).Send(20).Then(func(n int) (int, error) { return n + 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 21, out)
}

func TestThen_ShortCircuit(t *testing.T) {
	var log trace
	guard := func(payload string, next pipeline.Handler[string, string]) (string, error) {
		return "denied", nil
	}

	out, err := pipeline.New[string, string](nil).
		Send("x").
		Through(tag("A", &log), guard, tag("C", &log)).
		Then(func(s string) (string, error) {
			log = append(log, "core")
			return s, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "denied", out)
	assert.Equal(t, trace{"A:in", "A:out"}, log, "stages after the guard and the destination must not run")
}

func TestThen_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	var log trace

	_, err := pipeline.New[string, string](nil).
		Send("x").
		Through(tag("A", &log)).
		Then(func(string) (string, error) { return "", boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, trace{"A:in", "A:out"}, log)
}

func TestThen_NextCalledTwice(t *testing.T) {
	twice := func(payload string, next pipeline.Handler[string, string]) (string, error) {
		if _, err := next(payload); err != nil {
			return "", err
		}
		return next(payload)
	}

	calls := 0
	_, err := pipeline.New[string, string](nil).
		Send("x").
		Through(twice).
		Then(func(s string) (string, error) {
			calls++
			return s, nil
		})

	assert.ErrorIs(t, err, pipeline.ErrNextCalledTwice)
	assert.Equal(t, 1, calls)
}

func TestThen_NamedStagesFromContainer(t *testing.T) {
	c := container.New()
	c.Instance("suffix", suffixStage{})
	var log trace
	c.Instance("tag", tag("T", &log))

	out, err := pipeline.New[string, string](c).
		Send("p").
		Through("suffix:60,1", "tag").
		Pipe("suffix").
		Then(func(s string) (string, error) { return s, nil })

	require.NoError(t, err)
	assert.Equal(t, "p[60|1]T[]", out)
}

func TestThen_InvalidStages(t *testing.T) {
	c := container.New()
	c.Instance("not-a-stage", 42)

	tests := []struct {
		name  string
		c     *container.Container
		stage any
	}{
		{"unsupported value", c, 3.14},
		{"resolves to non-stage", c, "not-a-stage"},
		{"named stage without container", nil, "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.New[string, string](tt.c).
				Send("x").
				Through(tt.stage).
				Then(func(s string) (string, error) { return s, nil })
			assert.ErrorIs(t, err, container.ErrInvalidConfiguration)
		})
	}
}

func TestThen_UnboundNamedStage(t *testing.T) {
	_, err := pipeline.New[string, string](container.New()).
		Send("x").
		Through("missing").
		Then(func(s string) (string, error) { return s, nil })

	var bre *container.BindingResolutionError
	assert.ErrorAs(t, err, &bre)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in         string
		wantName   string
		wantParams []string
	}{
		{"throttle:60,1", "throttle", []string{"60", "1"}},
		{"throttle:api", "throttle", []string{"api"}},
		{"auth", "auth", nil},
		{"auth:", "auth", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, params := pipeline.Parse(tt.in)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}
