package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// BindError describes a rejected request payload, carrying per-field detail
// suitable for the JSON error envelope.
type BindError struct {
	Code   string
	Fields map[string]string
	err    error
}

// Error implements the error interface.
func (e *BindError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		return e.Code
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return fmt.Sprintf("%s [%s]", e.Code, strings.Join(parts, "; "))
}

// Unwrap exposes the underlying decode or validation error.
func (e *BindError) Unwrap() error { return e.err }

// DecodeAndValidate decodes the JSON request body into out and validates it
// with the supplied validator. Unknown fields are rejected.
func DecodeAndValidate(r *http.Request, out any, v *validatorv10.Validate) error {
	if r == nil || r.Body == nil {
		return &BindError{Code: "invalid_request_body", err: errors.New("empty body")}
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return &BindError{Code: "invalid_request_body", err: err}
	}

	if v == nil {
		return nil
	}
	if err := v.Struct(out); err != nil {
		return &BindError{
			Code:   "validation_failed",
			Fields: fieldErrors(err),
			err:    err,
		}
	}
	return nil
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fmt.Sprintf("failed %q constraint", fe.Tag())
		}
		return out
	}
	out["error"] = err.Error()
	return out
}
