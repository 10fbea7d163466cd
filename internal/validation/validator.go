// Package validation checks wizard steps and finance forms. Field rules are
// declared as struct tags and run first; cross-field rules run as a second
// pass over the same value. Both passes report Violations instead of errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxAmount is the largest monetary value accepted anywhere
const MaxAmount = 9999999.99

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,19}$`)

// Violation is one failed rule, addressed by its JSON field path
type Violation struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Rule    string   `json:"rule"`
}

// Field joins the path with dots
func (v Violation) Field() string {
	return strings.Join(v.Path, ".")
}

// Violations is the result of a validation run; empty means valid
type Violations []Violation

func (vs Violations) Error() string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field(), v.Message))
	}
	return strings.Join(parts, "; ")
}

// At returns the violations reported for exactly this path
func (vs Violations) At(path ...string) Violations {
	var out Violations
	for _, v := range vs {
		if reflect.DeepEqual(v.Path, path) {
			out = append(out, v)
		}
	}
	return out
}

// Has reports whether any violation targets the path
func (vs Violations) Has(path ...string) bool {
	return len(vs.At(path...)) > 0
}

// normalizer is implemented by forms that derive fields after validation
type normalizer interface {
	Normalize()
}

// Validator runs the field and cross-field passes
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Validator
type Option func(*Validator)

// WithNow overrides the clock used by date-relative rules
func WithNow(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a validator with the custom tags registered
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		amount, ok := numeric(fl.Field())
		return ok && amount > 0 && amount <= MaxAmount
	})
	_ = validate.RegisterValidation("money0", func(fl validator.FieldLevel) bool {
		amount, ok := numeric(fl.Field())
		return ok && amount >= 0 && amount <= MaxAmount
	})
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("pastdate", func(fl validator.FieldLevel) bool {
		d, err := ParseDate(fl.Field().String())
		if err != nil {
			return true
		}
		return d.Before(v.today())
	})
	_ = validate.RegisterValidation("futuredate", func(fl validator.FieldLevel) bool {
		d, err := ParseDate(fl.Field().String())
		if err != nil {
			return true
		}
		return d.After(v.now())
	})

	v.validate = validate
	return v
}

// Validate checks obj, which must be a pointer to one of the form models.
// Forms that pass both passes are normalized in place.
func (v *Validator) Validate(obj any) Violations {
	out := v.fieldPass(obj)
	out = append(out, v.crossFieldPass(obj)...)
	if len(out) == 0 {
		if n, ok := obj.(normalizer); ok {
			n.Normalize()
		}
		return nil
	}
	return out
}

// Now exposes the validator clock
func (v *Validator) Now() time.Time {
	return v.now()
}

func (v *Validator) today() time.Time {
	now := v.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (v *Validator) fieldPass(obj any) Violations {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Violations{{Message: "Invalid input", Rule: "invalid"}}
	}

	out := make(Violations, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := splitNamespace(fe.Namespace())
		out = append(out, Violation{
			Path:    path,
			Message: fmt.Sprintf("%s %s", label(path), tagMessage(fe)),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// ParseDate accepts a calendar date or an RFC3339 timestamp
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

func numeric(field reflect.Value) (float64, bool) {
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return field.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(field.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(field.Uint()), true
	}
	return 0, false
}

// splitNamespace turns "PDCBulkCreate.cheques[1].chequeNumber" into
// ["cheques", "1", "chequeNumber"].
func splitNamespace(ns string) []string {
	segments := strings.Split(ns, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	var path []string
	for _, seg := range segments {
		for {
			open := strings.Index(seg, "[")
			if open < 0 {
				if seg != "" {
					path = append(path, seg)
				}
				break
			}
			if open > 0 {
				path = append(path, seg[:open])
			}
			end := strings.Index(seg, "]")
			if end < open {
				path = append(path, seg[open:])
				break
			}
			path = append(path, seg[open+1:end])
			seg = seg[end+1:]
		}
	}
	return path
}

func tagMessage(fe validator.FieldError) string {
	kind := fe.Kind()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "money":
		return "must be greater than 0 and at most 9,999,999.99"
	case "money0":
		return "must be between 0 and 9,999,999.99"
	case "phone":
		return "must be a valid phone number"
	case "isodate":
		return "must be a valid date (YYYY-MM-DD)"
	case "pastdate":
		return "must be in the past"
	case "futuredate":
		return "must be in the future"
	}
	return "is invalid"
}

var acronyms = map[string]string{"id": "ID", "pdc": "PDC", "uuid": "UUID"}

// label renders the last named path segment for messages: "nationalId" -> "National ID"
func label(path []string) string {
	name := ""
	for i := len(path) - 1; i >= 0; i-- {
		if _, err := strconv.Atoi(path[i]); err != nil {
			name = path[i]
			break
		}
	}
	if name == "" {
		return "Value"
	}

	var words []string
	start := 0
	for i := 1; i < len(name); i++ {
		if name[i] >= 'A' && name[i] <= 'Z' {
			words = append(words, name[start:i])
			start = i
		}
	}
	words = append(words, name[start:])

	for i, w := range words {
		lw := strings.ToLower(w)
		if a, ok := acronyms[lw]; ok {
			words[i] = a
			continue
		}
		if i == 0 {
			words[i] = strings.ToUpper(lw[:1]) + lw[1:]
		} else {
			words[i] = lw
		}
	}
	return strings.Join(words, " ")
}
