package domain

import "errors"

// Sentinel errors, grouped by how callers should treat them.
var (
	// Invalid input: the request itself is malformed.
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrInvalidBetTiming = errors.New("bet timestamp outside pool window")

	// State conflict: the entity is in a state that permanently forbids
	// the operation. Retrying will never succeed.
	ErrBettingClosed     = errors.New("betting period is over")
	ErrDuplicateBet      = errors.New("bet already placed for this pool")
	ErrSelfBetNotAllowed = errors.New("creator cannot bet on own pool")
	ErrAlreadyClaimed    = errors.New("payout already claimed")
	ErrAlreadyRequested  = errors.New("resolution already requested")
	ErrAlreadyResolved   = errors.New("pool already resolved")
	ErrNotResolved       = errors.New("pool is not resolved")

	// Not yet eligible: the operation is valid but too early. Retrying
	// later may succeed.
	ErrBettingStillOpen   = errors.New("betting period still open")
	ErrNotRequested       = errors.New("resolution has not been requested")
	ErrLivenessNotElapsed = errors.New("liveness window has not elapsed")

	// Infrastructure.
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
	ErrExternal = errors.New("external call failed")
)

// ErrorKind classifies an error for API responses and retry decisions.
type ErrorKind string

const (
	KindInvalidInput   ErrorKind = "invalid_input"
	KindStateConflict  ErrorKind = "state_conflict"
	KindNotYetEligible ErrorKind = "not_yet_eligible"
	KindNotFound       ErrorKind = "not_found"
	KindExternal       ErrorKind = "external_failure"
	KindUnknown        ErrorKind = "unknown"
)

// Kind maps an error (possibly wrapped) to its taxonomy bucket.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrZeroAmount), errors.Is(err, ErrInvalidBetTiming):
		return KindInvalidInput
	case errors.Is(err, ErrBettingClosed), errors.Is(err, ErrDuplicateBet),
		errors.Is(err, ErrSelfBetNotAllowed), errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrAlreadyRequested), errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrNotResolved):
		return KindStateConflict
	case errors.Is(err, ErrBettingStillOpen), errors.Is(err, ErrNotRequested),
		errors.Is(err, ErrLivenessNotElapsed):
		return KindNotYetEligible
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternal), errors.Is(err, ErrLockHeld):
		return KindExternal
	default:
		return KindUnknown
	}
}

// Terminal reports whether the error is permanent for the entity it was
// returned for. Terminal errors must not be retried; everything else may
// be retried at the caller's discretion.
func Terminal(err error) bool {
	return Kind(err) == KindStateConflict || Kind(err) == KindInvalidInput
}
