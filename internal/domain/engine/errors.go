package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any engine response for a missing resource
var ErrNotFound = errors.New("resource not found")

// Error is a non-2xx response from the engine
type Error struct {
	Op         string
	StatusCode int
	Type       string
	Reason     string
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Reason)
}

// Is makes 404 responses match ErrNotFound
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err means the resource does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err means the resource was already created
func IsAlreadyExists(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == "resource_already_exists_exception" || e.StatusCode == http.StatusConflict
}
