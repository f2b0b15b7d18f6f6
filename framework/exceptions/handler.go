package exceptions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// errorIDAttribute is the request attribute carrying the id of the last
// reported error, so the rendered response can quote it.
const errorIDAttribute = "error_id"

// Handler reports and renders errors that escape the HTTP kernel.
//
//	// Laravel: App\Exceptions\Handler
//	h := exceptions.NewHandler(logger, cfg.App.Debug)
//	h.Report(req, err)
//	res := h.Render(req, err)
type Handler struct {
	logger     *logrus.Logger
	debug      bool
	dontReport []error
}

// NewHandler creates a handler logging to logger. In debug mode rendered
// server errors include the error message and type.
func NewHandler(logger *logrus.Logger, debug bool) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{logger: logger, debug: debug}
}

// DontReport silences errors matching any of targets (errors.Is).
func (h *Handler) DontReport(targets ...error) *Handler {
	h.dontReport = append(h.dontReport, targets...)
	return h
}

// ShouldReport reports whether err is worth logging. Client errors and
// failed authentication are not.
func (h *Handler) ShouldReport(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range h.dontReport {
		if errors.Is(err, target) {
			return false
		}
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}
	var httpErr gohttp.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() >= http.StatusInternalServerError
	}
	return true
}

// Report logs err with an error id and remembers the id on req.
//
//	// Laravel: report($e)
func (h *Handler) Report(req *gohttp.Request, err error) {
	if !h.ShouldReport(err) {
		return
	}
	id := uuid.NewString()
	fields := logrus.Fields{
		"error_id":  id,
		"exception": fmt.Sprintf("%T", err),
	}
	if req != nil {
		req.SetAttribute(errorIDAttribute, id)
		fields["method"] = req.Method()
		fields["path"] = req.Path()
		if route := req.Route(); route != nil {
			fields["route"] = route.URI()
		}
	}
	h.logger.WithFields(fields).WithError(err).Error("unhandled error")
}

// Render turns err into a response for req.
//
//	// Laravel: $handler->render($request, $e)
func (h *Handler) Render(req *gohttp.Request, err error) *gohttp.Response {
	res := h.render(req, err).Prepare(req)
	if req != nil && req.IsPrecognitive() {
		res.Header.Set("Precognition", "true")
		res.AddVary("Precognition")
	}
	return res
}

func (h *Handler) render(req *gohttp.Request, err error) *gohttp.Response {
	var responsable gohttp.Responsable
	if errors.As(err, &responsable) {
		if res, rerr := responsable.ToResponse(req); rerr == nil && res != nil {
			return res
		}
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return h.unauthenticated(req, authErr)
	}

	var httpErr gohttp.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode() < http.StatusInternalServerError {
		return h.httpError(req, httpErr)
	}

	return h.serverError(req, err, httpErr)
}

func (h *Handler) unauthenticated(req *gohttp.Request, err *AuthenticationError) *gohttp.Response {
	if expectsJSON(req) {
		return gohttp.Unauthorized(err.Error())
	}
	return gohttp.RedirectTo(err.redirectPath())
}

func (h *Handler) httpError(req *gohttp.Request, err gohttp.HTTPError) *gohttp.Response {
	var res *gohttp.Response
	if expectsJSON(req) {
		res = gohttp.Error(err.StatusCode(), err.Error())
	} else {
		res = gohttp.Text(err.StatusCode(), err.Error())
	}
	for k, vs := range err.Headers() {
		res.Header[k] = append([]string(nil), vs...)
	}
	return res
}

// serverError renders a 5xx. httpErr is set when err carries its own
// status and headers.
func (h *Handler) serverError(req *gohttp.Request, err error, httpErr gohttp.HTTPError) *gohttp.Response {
	status := http.StatusInternalServerError
	headers := http.Header{}
	if httpErr != nil {
		status, headers = httpErr.StatusCode(), httpErr.Headers()
	}

	id := errorID(req)
	message := "Server Error"
	if httpErr != nil {
		message = http.StatusText(status)
	}

	var res *gohttp.Response
	if expectsJSON(req) {
		body := map[string]any{"message": message, "error_id": id}
		if h.debug {
			body["message"] = err.Error()
			body["exception"] = fmt.Sprintf("%T", err)
		}
		res = gohttp.JSON(status, body)
	} else {
		text := message + " (error id: " + id + ")"
		if h.debug {
			text = fmt.Sprintf("%s\n\n%T: %v", text, err, err)
		}
		res = gohttp.Text(status, text)
	}
	for k, vs := range headers {
		res.Header[k] = append([]string(nil), vs...)
	}
	return res
}

func errorID(req *gohttp.Request) string {
	if req != nil {
		if v, ok := req.Attribute(errorIDAttribute); ok {
			if id, ok := v.(string); ok {
				return id
			}
		}
	}
	return uuid.NewString()
}

func expectsJSON(req *gohttp.Request) bool {
	return req == nil || req.ExpectsJSON()
}
