package kernel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrKernelNotFound is matched by *KernelNotFoundError.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrInvalidKernelInput is matched by *InvalidKernelInputError.
	ErrInvalidKernelInput = errors.New("invalid kernel input")

	// ErrDuplicateKernel is returned when registering a second kernel for the
	// same (operation, backend) pair.
	ErrDuplicateKernel = errors.New("duplicate kernel registration")
)

// KernelNotFoundError reports that no kernel is registered for an operation
// on a backend. It is fatal to the call: retrying cannot change the registry.
type KernelNotFoundError struct {
	OpID    OpID
	Backend string
}

func (e *KernelNotFoundError) Error() string {
	return fmt.Sprintf("kernel %q not registered for backend %q", e.OpID, e.Backend)
}

// Is makes errors.Is(err, ErrKernelNotFound) succeed.
func (e *KernelNotFoundError) Is(target error) bool {
	return target == ErrKernelNotFound
}

// InvalidKernelInputError reports a mismatch between the inputs or attributes
// an operation wrapper built and what the resolved kernel declares. It always
// indicates a defect in operation registration.
type InvalidKernelInputError struct {
	OpID     OpID
	Expected []string
	Actual   []string
	Detail   string
}

func (e *InvalidKernelInputError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid input for kernel %q", e.OpID)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&sb, " (expected %v, got %v)", e.Expected, e.Actual)
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrInvalidKernelInput) succeed.
func (e *InvalidKernelInputError) Is(target error) bool {
	return target == ErrInvalidKernelInput
}
