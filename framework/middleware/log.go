package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
	"github.com/km-arc/go-laravel-kernel/framework/routing"
)

// LogRequests writes one log entry per request once it has been answered.
// Server errors log at error level, client errors at warning level.
type LogRequests struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewLogRequests creates the middleware around logger.
func NewLogRequests(logger *logrus.Logger) *LogRequests {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogRequests{logger: logger, now: time.Now}
}

func (l *LogRequests) Handle(req *gohttp.Request, next routing.Next) (*gohttp.Response, error) {
	start := l.now()
	res, err := next(req)
	status := statusOf(res, err)

	fields := logrus.Fields{
		"method":      req.Method(),
		"path":        req.Path(),
		"status":      status,
		"duration_ms": l.now().Sub(start).Milliseconds(),
		"ip":          clientIP(req),
	}
	if id := chimw.GetReqID(req.Context()); id != "" {
		fields["request_id"] = id
	}
	if r := req.Route(); r != nil {
		fields["route"] = r.URI()
	}

	entry := l.logger.WithFields(fields)
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error("request failed")
	case status >= http.StatusBadRequest:
		entry.Warn("request rejected")
	default:
		entry.Info("request handled")
	}
	return res, err
}
