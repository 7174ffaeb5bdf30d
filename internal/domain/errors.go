package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput marks malformed caller input; retrying without changes cannot succeed.
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	// ErrInvalidReferralCode signals a referral code that resolves to no user.
	// Registration only surfaces it in strict mode; the default policy drops the link instead.
	ErrInvalidReferralCode = errors.New("invalid referral code")
	// ErrAlreadyHasCode rejects code generation for users that already hold one.
	// The UI hides the action once a code exists, so a hard error beats a silent no-op.
	ErrAlreadyHasCode = errors.New("user already has a referral code")
	// ErrCodeSpaceExhausted is returned after the bounded collision-retry budget is spent.
	ErrCodeSpaceExhausted = errors.New("referral code space exhausted")
	// ErrInvalidRate rejects custom commission rates outside [0,1].
	// The whole profile update fails; rates are never partially applied.
	ErrInvalidRate = errors.New("invalid commission rate")
	// ErrAlreadyClaimed signals a commission whose one-way claimed flag is already set.
	// Under concurrent duplicate claims exactly one caller avoids this error.
	ErrAlreadyClaimed = errors.New("commission already claimed")
	// ErrDuplicateTrade marks a trade id that was already settled into the ledger.
	// Replays are acknowledged without creating records so accrual stays exactly-once.
	ErrDuplicateTrade = errors.New("trade already processed")
	ErrUnauthorized   = errors.New("unauthorized")
)
