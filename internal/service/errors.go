package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/hcap-portal/internal/transition"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError reports a malformed request body.
type ValidationError struct {
	Message string       `json:"error"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// RejectedError is a transition the validator refused.  Kind is echoed to
// the client so it can show a specific message.
type RejectedError struct {
	Kind transition.Rejection
}

func (e *RejectedError) Error() string { return string(e.Kind) }

// ErrNotHired is returned when return of service is requested for a
// participant whose current status is not hired.
var ErrNotHired = errors.New("participant is not currently hired")

// IsRejection reports whether err carries the given rejection kind.
func IsRejection(err error, kind transition.Rejection) bool {
	var re *RejectedError
	return errors.As(err, &re) && re.Kind == kind
}

// ValidationFailed converts a decode or validator error into a
// ValidationError.  JSON field names are used when available.
func ValidationFailed(msg string, err error) *ValidationError {
	ve := &ValidationError{Message: msg}
	var fieldErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			ve.Fields = append(ve.Fields, FieldError{Field: fieldPath(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()})
		}
	case errors.As(err, &typeErr):
		ve.Fields = append(ve.Fields, FieldError{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.String()})
	case err != nil:
		ve.Message = fmt.Sprintf("%s: %v", msg, err)
	}
	return ve
}

// fieldPath drops the root struct name from a validator namespace:
// "HiredData.site" becomes "site".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// NewValidator returns a validator that reports JSON field names.  Handlers
// share it for request bodies.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}
