package tally

import "errors"

// Sentinel errors for common failure scenarios.
var (
	// ErrUnknownKind is returned when an operation names a ledger kind
	// other than currency or experience.
	ErrUnknownKind = errors.New("tally: unknown ledger kind")

	// ErrInvalidAmount is returned when a relative operation is given a
	// negative amount. Callers are expected to pass non-negative deltas;
	// this check is defensive validation on top of that contract.
	ErrInvalidAmount = errors.New("tally: negative amount")
)

// IsInvalidInput reports whether err is a caller contract violation
// rather than a store or cache failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrUnknownKind) || errors.Is(err, ErrInvalidAmount)
}
