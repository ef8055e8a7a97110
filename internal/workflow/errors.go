package workflow

import (
	"errors"
)

// Kind classifies workflow failures. Values double as API error codes.
type Kind string

const (
	KindWalletNotConnected  Kind = "WALLET_NOT_CONNECTED"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindInsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	KindRunInProgress       Kind = "RUN_IN_PROGRESS"
	KindLedgerSubmission    Kind = "LEDGER_SUBMISSION_ERROR"
	KindConfirmationTimeout Kind = "LEDGER_CONFIRMATION_TIMEOUT"
	KindRunNotFound         Kind = "RUN_NOT_FOUND"
	KindNotResumable        Kind = "NOT_RESUMABLE"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrRunInProgress      = errors.New("a token creation run is already in progress")

	// ErrConfirmationTimeout is wrapped by Ledger.Confirm when the
	// transaction was not confirmed before its blockhash expired or the
	// confirm deadline passed.
	ErrConfirmationTimeout = errors.New("transaction was not confirmed in time")
)

// Error is returned by every workflow operation. Error() is the
// underlying message verbatim.
type Error struct {
	Kind  Kind
	Step  Step   // empty for errors raised before the first submission
	RunID string // empty when no run was registered
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a workflow error, or "" for foreign errors
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Err: err}
}
