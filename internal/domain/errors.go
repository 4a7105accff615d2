package domain

import "errors"

type ErrorKind string

const (
	InvalidParameters     ErrorKind = "InvalidParameters"
	UnregisteredAsset     ErrorKind = "UnregisteredAsset"
	InsufficientFunds     ErrorKind = "InsufficientFunds"
	InsufficientAllowance ErrorKind = "InsufficientAllowance"
	OrderNotFound         ErrorKind = "OrderNotFound"
	OrderNotActive        ErrorKind = "OrderNotActive"
	Unauthorized          ErrorKind = "Unauthorized"
	PairMismatch          ErrorKind = "PairMismatch"
	SideMismatch          ErrorKind = "SideMismatch"
	PriceCrossViolation   ErrorKind = "PriceCrossViolation"
)

// Error is a ledger rejection. Reason is stable and meant for callers.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Reason
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func NewError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrInvalidParameters     = &Error{Kind: InvalidParameters}
	ErrUnregisteredAsset     = &Error{Kind: UnregisteredAsset}
	ErrInsufficientFunds     = &Error{Kind: InsufficientFunds}
	ErrInsufficientAllowance = &Error{Kind: InsufficientAllowance}
	ErrOrderNotFound         = &Error{Kind: OrderNotFound}
	ErrOrderNotActive        = &Error{Kind: OrderNotActive}
	ErrUnauthorized          = &Error{Kind: Unauthorized}
	ErrPairMismatch          = &Error{Kind: PairMismatch}
	ErrSideMismatch          = &Error{Kind: SideMismatch}
	ErrPriceCrossViolation   = &Error{Kind: PriceCrossViolation}
)

// KindOf extracts the ledger error kind from err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
