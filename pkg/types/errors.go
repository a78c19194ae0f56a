package types

import "errors"

// Sentinel errors surfaced across the simulator core. Callers test with
// errors.Is; wrapped messages carry the specifics.
var (
	// ErrTapeNotFound means the tape file or directory does not exist.
	ErrTapeNotFound = errors.New("tape not found")

	// ErrEmptyTape means the tape parsed to zero events.
	ErrEmptyTape = errors.New("empty tape")

	// ErrBookNotInitialized means a delta arrived before the first book
	// snapshot and the book is in strict mode.
	ErrBookNotInitialized = errors.New("book not initialized")

	// ErrOrderNotFound means a cancel referenced an unknown order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderTerminal means a cancel referenced an order already in a
	// terminal state.
	ErrOrderTerminal = errors.New("order already terminal")

	// ErrUnknownStrategy means a run named a strategy that is not
	// registered.
	ErrUnknownStrategy = errors.New("unknown strategy")
)
