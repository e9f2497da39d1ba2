// Package errors declares the closed set of domain errors the store
// surfaces to callers. Everything else is treated as transient by the
// agent loops.
package errors

import "errors"

// requested entity does not exist.
var ErrMissing = errors.New("missing")

// more entities found than the invariant allows.
var ErrTooMuch = errors.New("too much")

// an insert collided with a uniqueness invariant.
var ErrDuplicate = errors.New("duplicated")
