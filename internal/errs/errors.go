// Package errs defines the trade/session error taxonomy shared by the
// bot controller and the trade coordinator. Every type is matchable with
// errors.As and none of them is fatal to the process.
package errs

import (
	"fmt"
)

// InitializationError means a prerequisite service (wallet, connection)
// was unavailable. Retrying Initialize is the recovery path.
type InitializationError struct {
	Reason string
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("initialization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("initialization failed: %s", e.Reason)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// ValidationError means malformed config or trade parameters. The request
// is rejected before any mutation; nothing is partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// PreconditionError means the operation was attempted in the wrong session
// state or without a connected wallet. No state change occurs.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Op, e.Reason)
}

// ConcurrencyError means a duplicate concurrent trade was attempted on the
// same mint. Surfaced to the caller, never retried automatically.
type ConcurrencyError struct {
	Op   string
	Mint string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s already in flight for mint %s", e.Op, e.Mint)
}

// TransactionError means the execution service failed during a buy or sell.
// The attempt is logged as an Error transaction; position state is intact.
type TransactionError struct {
	Op   string
	Mint string
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s failed for mint %s: %v", e.Op, e.Mint, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
