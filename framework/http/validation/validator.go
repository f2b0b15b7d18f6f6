package validation

import (
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	gohttp "github.com/km-arc/go-laravel-kernel/framework/http"
)

// ── Error bag ────────────────────────────────────────────────────────────────

// Errors holds validation errors — mirrors Laravel's ValidationException
// with its MessageBag. It is an error rendered as 422.
//
//	{"message": "The name field is required.", "errors": {"name": ["The name field is required."]}}
type Errors struct {
	Message string              `json:"message"`
	Bag     map[string][]string `json:"errors"`
}

// Add records a message for field.
func (e *Errors) Add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs := e.Bag[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e *Errors) Error() string { return e.Message }

// StatusCode makes Errors an HTTP error: 422 Unprocessable Entity.
func (e *Errors) StatusCode() int { return http.StatusUnprocessableEntity }

// Headers returns no extra headers.
func (e *Errors) Headers() http.Header { return http.Header{} }

// ToResponse renders the bag as the 422 JSON body Laravel clients expect.
func (e *Errors) ToResponse(_ *gohttp.Request) (*gohttp.Response, error) {
	return gohttp.NewJSON(e.StatusCode(), e)
}

func (e *Errors) summarize(order []string) {
	total := 0
	firstMsg := ""
	for _, field := range order {
		msgs := e.Bag[field]
		if firstMsg == "" && len(msgs) > 0 {
			firstMsg = msgs[0]
		}
		total += len(msgs)
	}
	switch {
	case total == 0:
		e.Message = ""
	case total == 1:
		e.Message = firstMsg
	case total == 2:
		e.Message = firstMsg + " (and 1 more error)"
	default:
		e.Message = fmt.Sprintf("%s (and %d more errors)", firstMsg, total-1)
	}
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"email": "required|email", "age": "required|numeric|gte:18"}
type Rules map[string]string

type rule struct {
	name  string
	param string
}

// Validator validates a flat map of input values.
type Validator struct {
	data   map[string]string
	fields []string
	rules  map[string][]rule
	only   []string
	errors *Errors
	ran    bool
}

// Make creates a new Validator — mirrors Validator::make($data, $rules).
// Fields are checked in name order so messages are deterministic.
func Make(data map[string]string, rules Rules) *Validator {
	v := &Validator{
		data:   data,
		rules:  make(map[string][]rule, len(rules)),
		errors: &Errors{},
	}
	for field, spec := range rules {
		v.fields = append(v.fields, field)
		for _, r := range strings.Split(spec, "|") {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			name, param, _ := strings.Cut(r, ":")
			v.rules[field] = append(v.rules[field], rule{name: name, param: param})
		}
	}
	slices.Sort(v.fields)
	return v
}

// Only restricts validation to the given fields. Precognitive requests use
// it to validate the inputs a user has touched so far.
func (v *Validator) Only(fields ...string) *Validator {
	v.only = fields
	return v
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.run()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors {
	v.run()
	return v.errors
}

// Validate returns nil or the *Errors bag as an error.
//
//	// Laravel: $request->validate([...])
func (v *Validator) Validate() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) run() {
	if v.ran {
		return
	}
	v.ran = true

	for _, field := range v.fields {
		if len(v.only) > 0 && !slices.Contains(v.only, field) {
			continue
		}
		value, present := v.data[field]
		for _, r := range v.rules[field] {
			if r.name == "sometimes" && !present {
				break
			}
			if r.name == "nullable" && strings.TrimSpace(value) == "" {
				break
			}
			check, ok := checks[r.name]
			if !ok {
				continue
			}
			if msg, ok := check(v, field, value, r.param); !ok {
				// stop on first failure (like Laravel's bail behaviour)
				v.errors.Add(field, msg)
				break
			}
		}
	}
	v.errors.summarize(v.fields)
}

// check returns the failure message and false when the rule does not hold.
type check func(v *Validator, field, value, param string) (string, bool)

var (
	alphaRe     = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumRe  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	urlRe       = regexp.MustCompile(`^https?://`)
)

var checks = map[string]check{
	"required": func(_ *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s field is required.", field), strings.TrimSpace(value) != ""
	},
	"numeric": func(_ *Validator, field, value, _ string) (string, bool) {
		_, err := strconv.ParseFloat(value, 64)
		return fmt.Sprintf("The %s must be a number.", field), err == nil
	},
	"integer": func(_ *Validator, field, value, _ string) (string, bool) {
		_, err := strconv.Atoi(value)
		return fmt.Sprintf("The %s must be an integer.", field), err == nil
	},
	"boolean": func(_ *Validator, field, value, _ string) (string, bool) {
		ok := slices.Contains([]string{"true", "false", "1", "0", "yes", "no"}, strings.ToLower(value))
		return fmt.Sprintf("The %s field must be true or false.", field), ok
	},
	"email": func(_ *Validator, field, value, _ string) (string, bool) {
		_, err := mail.ParseAddress(value)
		return fmt.Sprintf("The %s must be a valid email address.", field), err == nil
	},
	"url": func(_ *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s must be a valid URL.", field), urlRe.MatchString(value)
	},
	"min": func(_ *Validator, field, value, param string) (string, bool) {
		n, _ := strconv.Atoi(param)
		return fmt.Sprintf("The %s must be at least %d characters.", field, n), utf8.RuneCountInString(value) >= n
	},
	"max": func(_ *Validator, field, value, param string) (string, bool) {
		n, _ := strconv.Atoi(param)
		return fmt.Sprintf("The %s may not be greater than %d characters.", field, n), utf8.RuneCountInString(value) <= n
	},
	"size": func(_ *Validator, field, value, param string) (string, bool) {
		n, _ := strconv.Atoi(param)
		return fmt.Sprintf("The %s must be %d characters.", field, n), utf8.RuneCountInString(value) == n
	},
	"between": func(_ *Validator, field, value, param string) (string, bool) {
		lo, hi, found := strings.Cut(param, ",")
		if !found {
			return "", true
		}
		min, _ := strconv.Atoi(strings.TrimSpace(lo))
		max, _ := strconv.Atoi(strings.TrimSpace(hi))
		l := utf8.RuneCountInString(value)
		return fmt.Sprintf("The %s must be between %d and %d characters.", field, min, max), l >= min && l <= max
	},
	"in": func(_ *Validator, field, value, param string) (string, bool) {
		return fmt.Sprintf("The selected %s is invalid.", field), inList(param, value)
	},
	"not_in": func(_ *Validator, field, value, param string) (string, bool) {
		return fmt.Sprintf("The selected %s is invalid.", field), !inList(param, value)
	},
	"confirmed": func(v *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s confirmation does not match.", field), v.data[field+"_confirmation"] == value
	},
	"same": func(v *Validator, field, value, param string) (string, bool) {
		return fmt.Sprintf("The %s and %s must match.", field, param), v.data[param] == value
	},
	"different": func(v *Validator, field, value, param string) (string, bool) {
		return fmt.Sprintf("The %s and %s must be different.", field, param), v.data[param] != value
	},
	"alpha": func(_ *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s may only contain letters.", field), alphaRe.MatchString(value)
	},
	"alpha_num": func(_ *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s may only contain letters and numbers.", field), alphaNumRe.MatchString(value)
	},
	"alpha_dash": func(_ *Validator, field, value, _ string) (string, bool) {
		return fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field), alphaDashRe.MatchString(value)
	},
	"regex": func(_ *Validator, field, value, param string) (string, bool) {
		re, err := regexp.Compile(param)
		return fmt.Sprintf("The %s format is invalid.", field), err == nil && re.MatchString(value)
	},
	"gt":  compare("greater than", func(a, b float64) bool { return a > b }),
	"gte": compare("greater than or equal to", func(a, b float64) bool { return a >= b }),
	"lt":  compare("less than", func(a, b float64) bool { return a < b }),
	"lte": compare("less than or equal to", func(a, b float64) bool { return a <= b }),
}

func compare(phrase string, holds func(a, b float64) bool) check {
	return func(_ *Validator, field, value, param string) (string, bool) {
		a, _ := strconv.ParseFloat(value, 64)
		b, _ := strconv.ParseFloat(param, 64)
		return fmt.Sprintf("The %s must be %s %s.", field, phrase, param), holds(a, b)
	}
}

func inList(list, value string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

// ── Requests ─────────────────────────────────────────────────────────────────

// Request validates the input of req. On a precognitive request carrying a
// Precognition-Validate-Only header only the listed fields are checked.
//
//	// Laravel: $request->validate(['email' => 'required|email'])
//	if err := validation.Request(req, validation.Rules{"email": "required|email"}); err != nil {
//	    return nil, err // rendered as 422
//	}
func Request(req *gohttp.Request, rules Rules) error {
	v := Make(req.All(), rules)
	if req.IsPrecognitive() {
		if only := req.Header("Precognition-Validate-Only"); only != "" {
			fields := strings.Split(only, ",")
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
			v.Only(fields...)
		}
	}
	return v.Validate()
}
