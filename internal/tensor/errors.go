package tensor

import "github.com/pkg/errors"

// ErrInvalidArgument marks malformed caller input: ragged literals, unknown
// element types, out-of-range axes and similar. It is reported to the caller
// and never recovered internally.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
