package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrNoAccessToken    = errors.New("no access token for user")
)

// AppError is what a failed proxy request turns into for the browser. Detail
// is plain text; HTMLDetail is the same condition for in-page rendering and is
// empty when the caller never shows it.
type AppError struct {
	Err        error
	Detail     string
	HTMLDetail string
	Status     int
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, http.StatusText(e.Status), e.Detail, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(status int, detail string, err error) *AppError {
	return &AppError{
		Status: status,
		Detail: detail,
		Err:    err,
	}
}

// WithHTML attaches the html flavoured message shown inside the viewer frame
func (e *AppError) WithHTML(html string) *AppError {
	e.HTMLDetail = html
	return e
}

// AsAppError unwraps err into an AppError, or nil if there is none in the chain
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// ValidationError mirrors the catalog's field -> messages validation failures
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field string, messages ...string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: messages}}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConfigValidationError is raised while loading configuration
type ConfigValidationError struct {
	Value  interface{}
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s=%v: %s", e.Field, e.Value, e.Reason)
}
