package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// TestErrors_Matchable
// Every type survives wrapping and matches with errors.As
// ---------------------------------------------------------------------------
func TestErrors_Matchable(t *testing.T) {
	cause := errors.New("connection refused")

	wrapped := fmt.Errorf("executing trade: %w", &TransactionError{Op: "buy", Mint: "MintA", Err: cause})

	var txErr *TransactionError
	require.ErrorAs(t, wrapped, &txErr)
	assert.Equal(t, "buy", txErr.Op)
	assert.ErrorIs(t, wrapped, cause, "cause stays reachable through Unwrap")

	var concErr *ConcurrencyError
	assert.False(t, errors.As(wrapped, &concErr), "types do not cross-match")
}

// ---------------------------------------------------------------------------
// TestErrors_Messages
// ---------------------------------------------------------------------------
func TestErrors_Messages(t *testing.T) {
	assert.Equal(t,
		"initialization failed: wallet not connected",
		(&InitializationError{Reason: "wallet not connected"}).Error())

	assert.Equal(t,
		"validation failed: amount: must be positive",
		(&ValidationError{Field: "amount", Reason: "must be positive"}).Error())

	assert.Equal(t,
		"buy: precondition failed: bot not initialized",
		(&PreconditionError{Op: "buy", Reason: "bot not initialized"}).Error())

	assert.Equal(t,
		"sell already in flight for mint MintA",
		(&ConcurrencyError{Op: "sell", Mint: "MintA"}).Error())
}

// ---------------------------------------------------------------------------
// TestInitializationError_WrappedCause
// ---------------------------------------------------------------------------
func TestInitializationError_WrappedCause(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := &InitializationError{Reason: "price source unavailable", Err: cause}

	assert.Contains(t, err.Error(), "rpc timeout")
	assert.ErrorIs(t, err, cause)
}
