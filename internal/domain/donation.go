package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the settlement state of a donation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus returns the status for s or false when s is not a known status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed:
		return Status(s), true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// Terminal reports whether s is settled.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record in state s may move to next.
// Re-applying the current status is allowed and changes nothing.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == StatusPending && next.Terminal()
}

// Provenance identifies which backend produced a record.
type Provenance string

const (
	ProvenanceRemote Provenance = "remote"
	ProvenanceLocal  Provenance = "local"
)

// DefaultStatus is the status assumed for records of this provenance that
// carry none: remote rows are already settled, local ones await settlement.
func (p Provenance) DefaultStatus() Status {
	if p == ProvenanceLocal {
		return StatusPending
	}
	return StatusCompleted
}

// Donation is a single contribution as stored by either backend. Optional
// fields may be missing on read and are defaulted by the normalizer.
type Donation struct {
	ID              string
	UserID          string
	CharityID       *string
	AmountFiat      decimal.NullDecimal
	AmountCrypto    decimal.NullDecimal
	TransactionHash string
	Status          Status
	CreatedAt       time.Time
}

// Validate rejects records without a user, with negative amounts or with an
// unknown status.
func (d Donation) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidDonation)
	}
	if d.AmountFiat.Valid && d.AmountFiat.Decimal.IsNegative() {
		return fmt.Errorf("%w: fiat amount must not be negative", ErrInvalidDonation)
	}
	if d.AmountCrypto.Valid && d.AmountCrypto.Decimal.IsNegative() {
		return fmt.Errorf("%w: crypto amount must not be negative", ErrInvalidDonation)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDonation, d.Status)
	}
	return nil
}

// Charity is the read-only catalog projection used for display.
type Charity struct {
	ID            string
	Name          string
	WalletAddress string
}

// UnknownCharity stands in for a charity reference that cannot be resolved.
var UnknownCharity = Charity{Name: "Unknown Charity"}

// TransactionView is a donation merged with its charity, ready for display.
type TransactionView struct {
	ID              string
	UserID          string
	Charity         Charity
	AmountFiat      decimal.Decimal
	AmountCrypto    decimal.NullDecimal
	TransactionHash string
	Status          Status
	Provenance      Provenance
	CreatedAt       time.Time
}
