// Package repository defines the data-access contracts of the
// allocation core and their MySQL implementations.  Sentinel errors
// declared here let higher layers such as services and handlers
// distinguish failure scenarios with errors.Is instead of inspecting
// driver-specific error strings.
package repository

import "errors"

// ErrNotFound is returned when a referenced item, seat or user does
// not exist.  Services translate this into a not_found result and
// handlers into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when registering a username that is
// already taken.  Handlers should translate this into an HTTP 409
// response.
var ErrUsernameExists = errors.New("username already exists")
