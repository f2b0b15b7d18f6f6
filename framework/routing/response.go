package routing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// ToResponse turns whatever an action returned into a response.
//
//   - Responsable values convert themselves first
//   - *gohttp.Response passes through
//   - a RecentlyCreated value that was just created → JSON 201
//   - Arrayable, Jsonable, json.Marshaler, maps, slices, arrays and structs → JSON 200
//   - anything else → text/plain 200 (nil gives an empty body)
//
// A 304 loses its body and content headers, and the response is prepared
// for req (HEAD bodies stripped, Content-Length set).
//
//	// Laravel: Router::toResponse($request, $response)
func ToResponse(req *gohttp.Request, v any) (*gohttp.Response, error) {
	if r, ok := v.(gohttp.Responsable); ok {
		res, err := r.ToResponse(req)
		if err != nil {
			return nil, err
		}
		v = res
	}

	res, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotModified {
		res.SetNotModified()
	}
	return res.Prepare(req), nil
}

func normalize(v any) (*gohttp.Response, error) {
	switch x := v.(type) {
	case *gohttp.Response:
		if x == nil {
			return gohttp.Text(http.StatusOK, ""), nil
		}
		return x, nil
	case nil:
		return gohttp.Text(http.StatusOK, ""), nil
	case string:
		return gohttp.Text(http.StatusOK, x), nil
	case []byte:
		return gohttp.Text(http.StatusOK, string(x)), nil
	}

	if rc, ok := v.(gohttp.RecentlyCreated); ok && rc.WasRecentlyCreated() {
		return gohttp.NewJSON(http.StatusCreated, structured(v))
	}

	switch x := v.(type) {
	case gohttp.Jsonable:
		body, err := x.ToJSON()
		if err != nil {
			return nil, err
		}
		return gohttp.NewResponse(body, http.StatusOK, http.Header{"Content-Type": {"application/json"}}), nil
	case gohttp.Arrayable, json.Marshaler:
		return gohttp.NewJSON(http.StatusOK, structured(v))
	case fmt.Stringer:
		return gohttp.Text(http.StatusOK, x.String()), nil
	}

	if isStructured(reflect.TypeOf(v)) {
		return gohttp.NewJSON(http.StatusOK, v)
	}
	return gohttp.Text(http.StatusOK, fmt.Sprint(v)), nil
}

func structured(v any) any {
	if a, ok := v.(gohttp.Arrayable); ok {
		return a.ToArray()
	}
	return v
}

func isStructured(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}
