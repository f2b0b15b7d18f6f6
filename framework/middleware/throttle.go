package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	"github.com/km-arc/go-laravel-kernel/framework/container"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// Default limit when throttle is used without parameters.
const (
	defaultMaxAttempts  = 60
	defaultDecayMinutes = 1
)

// AuthIdentifiable users expose the key the throttle and logs use for them.
//
//	// Laravel: Authenticatable::getAuthIdentifier()
type AuthIdentifiable interface {
	AuthIdentifier() string
}

// Throttle limits requests per client with a token bucket per signature.
//
//	throttle               → 60 requests per minute
//	throttle:10,1          → 10 requests per minute
//	throttle:10,1,uploads  → same, counted separately under "uploads"
//	throttle:10|100,1      → 10 for guests, 100 for authenticated users
//	throttle:api           → the named limiter "api" from config
//
// Responses carry X-RateLimit-Limit and X-RateLimit-Remaining. Exceeding
// the limit fails with 429 and a Retry-After header.
//
//	// Laravel: Illuminate\Routing\Middleware\ThrottleRequests
type Throttle struct {
	named map[string]config.Limit
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	decay    time.Duration
}

// NewThrottle creates a throttle knowing the named limiters in named.
func NewThrottle(named map[string]config.Limit) *Throttle {
	return &Throttle{
		named:    named,
		now:      time.Now,
		limiters: make(map[string]*bucket),
	}
}

// Handle applies the default limit.
func (t *Throttle) Handle(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
	return t.HandleWith(req, next, nil)
}

// HandleWith applies the limit described by params.
func (t *Throttle) HandleWith(req *gohttp.Request, next routing.Next, params []string) (*gohttp.Response, error) {
	limit, prefix, err := t.limitFor(req, params)
	if err != nil {
		return nil, err
	}

	now := t.now()
	key := prefix + signature(req) + ":" + strconv.Itoa(limit.MaxAttempts) + "/" + strconv.Itoa(limit.DecayMinutes)
	limiter := t.limiter(key, limit, now)

	if !limiter.AllowN(now, 1) {
		r := limiter.ReserveN(now, 1)
		retryAfter := int(math.Ceil(r.DelayFrom(now).Seconds()))
		r.CancelAt(now)
		return nil, tooManyAttempts(limit.MaxAttempts, retryAfter, now)
	}

	res, err := next(req)
	if err != nil {
		return nil, err
	}
	if res != nil {
		remaining := int(math.Max(0, math.Floor(limiter.TokensAt(now))))
		res.Header.Set("X-RateLimit-Limit", strconv.Itoa(limit.MaxAttempts))
		res.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	return res, nil
}

// limitFor parses the middleware parameters.
func (t *Throttle) limitFor(req *gohttp.Request, params []string) (config.Limit, string, error) {
	if len(params) == 0 {
		return config.Limit{MaxAttempts: defaultMaxAttempts, DecayMinutes: defaultDecayMinutes}, "", nil
	}

	if limit, ok := t.named[params[0]]; ok {
		return limit, params[0] + ":", nil
	}

	attempts := params[0]
	if guest, member, ok := strings.Cut(attempts, "|"); ok {
		attempts = guest
		if req.User() != nil {
			attempts = member
		}
	}
	maxAttempts, err := strconv.Atoi(strings.TrimSpace(attempts))
	if err != nil || maxAttempts <= 0 {
		return config.Limit{}, "", fmt.Errorf("throttle: %w: unknown limiter or bad limit [%s]",
			container.ErrInvalidConfiguration, params[0])
	}

	decay := defaultDecayMinutes
	if len(params) > 1 {
		if decay, err = strconv.Atoi(strings.TrimSpace(params[1])); err != nil || decay <= 0 {
			return config.Limit{}, "", fmt.Errorf("throttle: %w: bad decay [%s]",
				container.ErrInvalidConfiguration, params[1])
		}
	}

	prefix := ""
	if len(params) > 2 {
		prefix = params[2] + ":"
	}
	return config.Limit{MaxAttempts: maxAttempts, DecayMinutes: decay}, prefix, nil
}

// limiter returns the bucket for key, creating it on first use.
func (t *Throttle) limiter(key string, limit config.Limit, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.limiters[key]
	if !ok {
		decay := time.Duration(limit.DecayMinutes) * time.Minute
		every := decay / time.Duration(limit.MaxAttempts)
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(every), limit.MaxAttempts),
			decay:   decay,
		}
		t.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Cleanup forgets buckets idle for longer than their decay window; such a
// bucket is full again and would be recreated identically.
func (t *Throttle) Cleanup() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, b := range t.limiters {
		if now.Sub(b.lastSeen) > b.decay {
			delete(t.limiters, key)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (t *Throttle) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Cleanup()
			}
		}
	}()
}

// signature identifies the client: the authenticated user when there is
// one, otherwise the route and client address.
func signature(req *gohttp.Request) string {
	var raw string
	if user := req.User(); user != nil {
		if u, ok := user.(AuthIdentifiable); ok {
			raw = u.AuthIdentifier()
		} else {
			raw = fmt.Sprint(user)
		}
	} else {
		route := ""
		if r := req.Route(); r != nil {
			route = r.URI()
		}
		raw = route + "|" + clientIP(req)
	}
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// clientIP strips the port from the remote address.
func clientIP(req *gohttp.Request) string {
	addr := req.IP()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func tooManyAttempts(maxAttempts, retryAfter int, now time.Time) *gohttp.StatusError {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &gohttp.StatusError{
		Status:  http.StatusTooManyRequests,
		Message: "Too Many Attempts.",
		Header: http.Header{
			"Retry-After":           []string{strconv.Itoa(retryAfter)},
			"X-Ratelimit-Reset":     []string{strconv.FormatInt(now.Add(time.Duration(retryAfter)*time.Second).Unix(), 10)},
			"X-Ratelimit-Limit":     []string{strconv.Itoa(maxAttempts)},
			"X-Ratelimit-Remaining": []string{"0"},
		},
	}
}
