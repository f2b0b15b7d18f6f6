// Package validation provides Laravel-compatible input validation.
//
// Rules are pipe-separated strings keyed by field name. A failed validation
// is an error: returned from an action it is rendered as 422 with the
// standard Laravel error bag.
//
//	func (c *UserController) Store(req *gohttp.Request) (any, error) {
//	    if err := validation.Request(req, validation.Rules{
//	        "name":  "required|min:2|max:100",
//	        "email": "required|email",
//	    }); err != nil {
//	        return nil, err
//	    }
//	    ...
//	}
//
// Standalone:
//
//	v := validation.Make(map[string]string{"age": "17"}, validation.Rules{"age": "required|numeric|gte:18"})
//	if v.Fails() {
//	    v.Errors().First("age") // "The age must be greater than or equal to 18."
//	}
//
// # Available Rules
//
//   - required, nullable, sometimes
//   - min:n, max:n, size:n, between:min,max (UTF-8 characters)
//   - alpha, alpha_num, alpha_dash, regex:pattern
//   - email, url
//   - numeric, integer, boolean, gt:n, gte:n, lt:n, lte:n
//   - in:a,b,c, not_in:a,b,c
//   - confirmed, same:other, different:other
//
// Rules for a field stop at the first failure. nullable stops on an empty
// value, sometimes on an absent one.
//
// # Precognition
//
// On a precognitive request (see the precognition middleware) carrying a
// Precognition-Validate-Only header, [Request] only checks the listed
// fields.
package validation
