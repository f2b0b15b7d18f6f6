package middleware

import (
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/km-arc/go-laravel-kernel/framework/config"
	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// HandleCors answers CORS preflight requests and decorates actual
// responses for the configured paths.
//
//	// Laravel: Illuminate\Http\Middleware\HandleCors
type HandleCors struct {
	cfg   config.CORSConfig
	paths []*regexp.Regexp
}

// NewHandleCors compiles the path patterns of cfg ("api/*").
func NewHandleCors(cfg config.CORSConfig) *HandleCors {
	h := &HandleCors{cfg: cfg}
	for _, p := range cfg.Paths {
		h.paths = append(h.paths, wildcard(strings.Trim(p, "/")))
	}
	return h
}

func (h *HandleCors) Handle(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
	if !h.applies(req) {
		return next(req)
	}

	if isPreflight(req) {
		res := gohttp.NoContent()
		h.preflightHeaders(req, res)
		res.AddVary("Access-Control-Request-Method")
		return res, nil
	}

	res, err := next(req)
	if err != nil || res == nil {
		return res, err
	}
	if req.IsMethod(http.MethodOptions) {
		res.AddVary("Access-Control-Request-Method")
	}
	h.actualHeaders(req, res)
	return res, nil
}

func (h *HandleCors) applies(req *gohttp.Request) bool {
	path := strings.Trim(req.Path(), "/")
	for _, re := range h.paths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func isPreflight(req *gohttp.Request) bool {
	return req.IsMethod(http.MethodOptions) && req.Header("Access-Control-Request-Method") != ""
}

func (h *HandleCors) preflightHeaders(req *gohttp.Request, res *gohttp.Response) {
	h.originHeaders(req, res)
	if h.cfg.SupportsCredentials {
		res.Header.Set("Access-Control-Allow-Credentials", "true")
	}

	if allowsAll(h.cfg.AllowedMethods) {
		res.Header.Set("Access-Control-Allow-Methods", strings.ToUpper(req.Header("Access-Control-Request-Method")))
	} else {
		res.Header.Set("Access-Control-Allow-Methods", strings.Join(h.cfg.AllowedMethods, ", "))
	}

	if allowsAll(h.cfg.AllowedHeaders) {
		if requested := req.Header("Access-Control-Request-Headers"); requested != "" {
			res.Header.Set("Access-Control-Allow-Headers", requested)
		}
		res.AddVary("Access-Control-Request-Headers")
	} else {
		res.Header.Set("Access-Control-Allow-Headers", strings.Join(h.cfg.AllowedHeaders, ", "))
	}

	if h.cfg.MaxAge > 0 {
		res.Header.Set("Access-Control-Max-Age", strconv.Itoa(h.cfg.MaxAge))
	}
}

func (h *HandleCors) actualHeaders(req *gohttp.Request, res *gohttp.Response) {
	h.originHeaders(req, res)
	if h.cfg.SupportsCredentials {
		res.Header.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(h.cfg.ExposedHeaders) > 0 {
		res.Header.Set("Access-Control-Expose-Headers", strings.Join(h.cfg.ExposedHeaders, ", "))
	}
}

// originHeaders answers "*" when every origin is allowed and credentials
// are not, and otherwise echoes an allowed Origin.
func (h *HandleCors) originHeaders(req *gohttp.Request, res *gohttp.Response) {
	origin := req.Header("Origin")
	if allowsAll(h.cfg.AllowedOrigins) && !h.cfg.SupportsCredentials {
		res.Header.Set("Access-Control-Allow-Origin", "*")
		return
	}
	if origin != "" && (allowsAll(h.cfg.AllowedOrigins) || slices.Contains(h.cfg.AllowedOrigins, origin)) {
		res.Header.Set("Access-Control-Allow-Origin", origin)
	}
	res.AddVary("Origin")
}

func allowsAll(list []string) bool {
	return slices.Contains(list, "*")
}

// wildcard compiles a Laravel Str::is pattern where * matches anything.
func wildcard(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}
