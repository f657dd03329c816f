package engine

import "github.com/pkg/errors"

var (
	// ErrNoBackend is returned when an operation runs before any backend is
	// registered or activated.
	ErrNoBackend = errors.New("no active backend")

	// ErrUnknownBackend is returned by SetBackend for unregistered names.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrKernelFailed wraps failures raised inside a kernel body, including
	// recovered panics.
	ErrKernelFailed = errors.New("kernel failed")

	// ErrScope reports misuse of resource-tracking scopes, e.g. closing a
	// scope that is not the innermost one.
	ErrScope = errors.New("scope misuse")
)
