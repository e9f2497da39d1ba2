package postgres

import (
	"fmt"

	domerr "github.com/opst/weft/pkg/domain/errors"
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return domerr.ErrMissing
}

// requested record is found too many times.
type TooMuch struct {
	Table    string
	Identity string
	Expected int
}

var _ error = TooMuch{}

func (t TooMuch) Error() string {
	return fmt.Sprintf(
		"%s is found in %s more than %d times",
		t.Identity, t.Table, t.Expected,
	)
}

func (t TooMuch) Unwrap() error {
	return domerr.ErrTooMuch
}

// an insert collided with a uniqueness invariant.
type Duplicate struct {
	Table    string
	Identity string
}

var _ error = Duplicate{}

func (d Duplicate) Error() string {
	return fmt.Sprintf("%s already exists in %s", d.Identity, d.Table)
}

func (d Duplicate) Unwrap() error {
	return domerr.ErrDuplicate
}
