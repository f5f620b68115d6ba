package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed normalization errors via errors.Is.
var (
	ErrNotFound = errors.New("catchment file not found")
	ErrSchema   = errors.New("catchment schema mismatch")
	ErrParse    = errors.New("catchment parse failure")
	ErrModel    = errors.New("model run failure")
)

// NotFoundError reports that the resolved input path does not exist.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catchment file %s not found: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SchemaError reports required columns absent from the header.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ParseError reports a value that could not be parsed. Line is 1-based and
// counts the header row.
type ParseError struct {
	Path   string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s line %d: column %q: cannot parse %q: %v", e.Path, e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ModelError reports a failed model run for one catchment, including
// parameter lookup and validation.
type ModelError struct {
	Model     string
	Catchment string
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s on %s: %v", e.Model, e.Catchment, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) Is(target error) bool { return target == ErrModel }

// ErrorKind classifies a transform error for metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrModel):
		return "model"
	default:
		return "other"
	}
}
