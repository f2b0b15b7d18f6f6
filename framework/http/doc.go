// Package http holds the request and response values that flow through the
// kernel, the router and every middleware.
//
// # Requests
//
//	req := gohttp.NewRequest(r)
//	req.BearerToken()      // Authorization: Bearer <token>
//	req.ExpectsJSON()      // render errors as JSON?
//	req.RouteParam("id")   // bound route parameter
//	req.User()             // set by the auth middleware
//
// # Responses
//
// Responses are values. Handlers return them, middleware may wrap or
// replace them and the kernel writes them once with Send:
//
//	return gohttp.Success(users), nil                   // 200 {"data": [...]}
//	return gohttp.Created(user), nil                    // 201 {"data": {...}}
//	return gohttp.Error(http.StatusConflict, "Taken"), nil
//	return gohttp.RedirectTo("/login"), nil
//
// # Errors
//
// An error implementing [HTTPError] is rendered with its own status and
// headers by the exception handler:
//
//	return nil, gohttp.Abort(http.StatusForbidden)
package http
