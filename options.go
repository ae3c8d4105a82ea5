package redistx

import "go.uber.org/zap"

// Options configure one transaction. The struct is copied at construction;
// changing it afterwards has no effect on a running transaction.
type Options struct {
	// CAS starts the transaction in check-and-set mode: commands run
	// immediately against the server until Multi promotes the transaction,
	// letting the caller read and validate watched keys first.
	CAS bool

	// Watch lists keys to WATCH when the transaction initializes.
	Watch []string

	// Retries is how many times an aborted transaction is replayed before
	// Execute gives up with an AbortError. Retries require a block: fluent
	// command sequences cannot be replayed.
	Retries int

	// OnRetry, if set, runs before each replay with the number of attempts
	// still remaining after the current one.
	OnRetry func(tx *Tx, attemptsLeft int)

	// Logger receives a debug-level trace of the protocol steps. Defaults
	// to a no-op logger.
	Logger *zap.Logger
}
