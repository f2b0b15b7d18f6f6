package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/middleware"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newRequest(method, path string) *gohttp.Request {
	return gohttp.NewRequest(httptest.NewRequest(method, path, nil))
}

func fromAddr(addr string) *gohttp.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	r.RemoteAddr = addr
	return gohttp.NewRequest(r)
}

func ok(*gohttp.Request) (*gohttp.Response, error) {
	return gohttp.Text(http.StatusOK, "ok"), nil
}

type member struct{ id string }

func (m member) AuthIdentifier() string { return m.id }

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newThrottle(named map[string]config.Limit) (*middleware.Throttle, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	th := middleware.NewThrottle(named)
	th.SetClock(c.now)
	return th, c
}

// ── Throttle ─────────────────────────────────────────────────────────────────

func TestThrottle_LimitsAndHeaders(t *testing.T) {
	th, clk := newThrottle(nil)
	req := fromAddr("192.0.2.1:1234")

	for _, wantRemaining := range []string{"1", "0"} {
		res, err := th.HandleWith(req, ok, []string{"2", "1"})
		require.NoError(t, err)
		assert.Equal(t, "2", res.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, wantRemaining, res.Header.Get("X-RateLimit-Remaining"))
	}

	_, err := th.HandleWith(req, ok, []string{"2", "1"})
	var httpErr gohttp.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode())
	assert.Equal(t, "Too Many Attempts.", httpErr.Error())
	assert.Equal(t, "30", httpErr.Headers().Get("Retry-After"))
	assert.Equal(t, "0", httpErr.Headers().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(clk.t.Add(30*time.Second).Unix(), 10), httpErr.Headers().Get("X-RateLimit-Reset"))

	clk.advance(30 * time.Second)
	_, err = th.HandleWith(req, ok, []string{"2", "1"})
	assert.NoError(t, err, "a token refills after decay/limit")
}

func TestThrottle_SeparateClients(t *testing.T) {
	th, _ := newThrottle(nil)

	_, err := th.HandleWith(fromAddr("192.0.2.1:1"), ok, []string{"1"})
	require.NoError(t, err)
	_, err = th.HandleWith(fromAddr("192.0.2.1:2"), ok, []string{"1"})
	assert.Error(t, err, "the port does not identify the client")
	_, err = th.HandleWith(fromAddr("192.0.2.2:1"), ok, []string{"1"})
	assert.NoError(t, err)

	_, err = th.HandleWith(fromAddr("192.0.2.1:1"), ok, []string{"1", "1", "uploads"})
	assert.NoError(t, err, "a prefix counts separately")
}

func TestThrottle_NamedLimiter(t *testing.T) {
	th, _ := newThrottle(map[string]config.Limit{"api": {MaxAttempts: 1, DecayMinutes: 1}})
	req := fromAddr("192.0.2.9:1")

	res, err := th.HandleWith(req, ok, []string{"api"})
	require.NoError(t, err)
	assert.Equal(t, "1", res.Header.Get("X-RateLimit-Limit"))

	_, err = th.HandleWith(req, ok, []string{"api"})
	assert.Error(t, err)
}

func TestThrottle_UserLimit(t *testing.T) {
	th, _ := newThrottle(nil)
	req := fromAddr("192.0.2.1:1")
	req.SetUserResolver(func() any { return member{id: "42"} })

	for i := 0; i < 3; i++ {
		_, err := th.HandleWith(req, ok, []string{"1|3"})
		require.NoError(t, err, "authenticated users get the second limit")
	}
	_, err := th.HandleWith(req, ok, []string{"1|3"})
	assert.Error(t, err)

	guest := fromAddr("192.0.2.1:1")
	_, err = th.HandleWith(guest, ok, []string{"1|3"})
	assert.NoError(t, err, "guests are counted apart from the user")
}

func TestThrottle_DefaultLimit(t *testing.T) {
	th, _ := newThrottle(nil)
	res, err := th.Handle(fromAddr("192.0.2.1:1"), ok)
	require.NoError(t, err)
	assert.Equal(t, "60", res.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", res.Header.Get("X-RateLimit-Remaining"))
}

func TestThrottle_BadParameters(t *testing.T) {
	th, _ := newThrottle(nil)
	for _, params := range [][]string{{"unknown"}, {"0"}, {"5", "never"}} {
		_, err := th.HandleWith(fromAddr("192.0.2.1:1"), ok, params)
		assert.ErrorIs(t, err, container.ErrInvalidConfiguration, "%v", params)
	}
}

func TestThrottle_PassesErrorsThrough(t *testing.T) {
	th, _ := newThrottle(nil)
	boom := errors.New("boom")
	_, err := th.HandleWith(fromAddr("192.0.2.1:1"), func(*gohttp.Request) (*gohttp.Response, error) {
		return nil, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestThrottle_Cleanup(t *testing.T) {
	th, clk := newThrottle(nil)
	_, err := th.HandleWith(fromAddr("192.0.2.1:1"), ok, []string{"5", "1"})
	require.NoError(t, err)
	_, err = th.HandleWith(fromAddr("192.0.2.2:1"), ok, []string{"5", "2"})
	require.NoError(t, err)
	require.Equal(t, 2, th.Buckets())

	clk.advance(90 * time.Second)
	th.Cleanup()
	assert.Equal(t, 1, th.Buckets(), "only buckets idle past their decay are dropped")
}
