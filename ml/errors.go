package ml

import (
	"errors"
	"fmt"
	"strings"
)

// MissingFieldError reports a required field absent from a record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func (e *MissingFieldError) FieldName() string { return e.Field }

// RangeError reports a numeric field outside its declared domain.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("field %q value %g out of range [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) FieldName() string { return e.Field }

// InvalidValueError reports a field that is present but cannot be parsed as its kind.
type InvalidValueError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("field %q value %v is invalid: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidValueError) FieldName() string { return e.Field }

// UnknownCategoryError reports a categorical value never seen when the encoder was fitted.
type UnknownCategoryError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("field %q has unknown category %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *UnknownCategoryError) FieldName() string { return e.Field }

// ArtifactLoadError reports a serialized pipeline that is missing, corrupt or incompatible.
type ArtifactLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ArtifactLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load artifact %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load artifact %s: %s", e.Path, e.Reason)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// FieldOf returns the record field an input error refers to.
func FieldOf(err error) (string, bool) {
	var fe interface{ FieldName() string }
	if errors.As(err, &fe) {
		return fe.FieldName(), true
	}
	return "", false
}

// IsInputError reports whether err was caused by the caller's record rather than the service.
func IsInputError(err error) bool {
	var (
		missing  *MissingFieldError
		rangeErr *RangeError
		invalid  *InvalidValueError
		unknown  *UnknownCategoryError
	)
	return errors.As(err, &missing) ||
		errors.As(err, &rangeErr) ||
		errors.As(err, &invalid) ||
		errors.As(err, &unknown)
}
