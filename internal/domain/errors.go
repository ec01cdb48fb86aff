package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrReconciliationConflict = errors.New("reconciliation conflict")
	ErrInvalidDonation        = errors.New("invalid donation")
)
