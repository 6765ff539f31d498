package registry

import "errors"

// ErrTooManyArgs is returned by Register when argTypes exceeds MaxArgs.
var ErrTooManyArgs = errors.New("registry: argument count exceeds MaxArgs")
