package target

import "fmt"

// ContractErrorKind enumerates caller contract violations. These are
// programming errors by the compiler driver, not recoverable runtime
// conditions; nothing here is retried.
type ContractErrorKind uint8

const (
	// ErrNotInitialized: an operation ran before Context.Init.
	ErrNotInitialized ContractErrorKind = iota + 1
	// ErrNotRegistered: removal of a native function that was never
	// registered, or was already removed.
	ErrNotRegistered
	// ErrAlreadyRegistered: a callable was registered twice.
	ErrAlreadyRegistered
	// ErrBadDescriptor: a function descriptor missing required parts.
	ErrBadDescriptor
)

// ContractError is a hard failure propagated immediately to the
// caller.
type ContractError struct {
	Kind   ContractErrorKind
	Detail string
}

func (e *ContractError) Error() string {
	var what string
	switch e.Kind {
	case ErrNotInitialized:
		what = "context not initialized"
	case ErrNotRegistered:
		what = "native function not registered"
	case ErrAlreadyRegistered:
		what = "native function already registered"
	case ErrBadDescriptor:
		what = "bad function descriptor"
	default:
		what = fmt.Sprintf("contract violation kind=%d", e.Kind)
	}
	if e.Detail == "" {
		return "target: " + what
	}
	return "target: " + what + ": " + e.Detail
}

func contractErr(kind ContractErrorKind, format string, args ...any) error {
	return &ContractError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
