package domain

import "context"

// DonationStore is the record store adapter shared by the remote and local
// backends. Callers never depend on which variant is active.
type DonationStore interface {
	// FetchDonations returns the user's donations, newest first. A user
	// without donations yields an empty slice and a nil error.
	FetchDonations(ctx context.Context, userID string) ([]Donation, error)
	InsertDonation(ctx context.Context, donation Donation) (Donation, error)
	// UpdateStatus settles the record carrying hash. It never creates one.
	UpdateStatus(ctx context.Context, hash string, status Status) (Donation, error)
	Provenance() Provenance
}

// CharityRepository looks up catalog entries by id. Unknown ids are skipped.
type CharityRepository interface {
	GetMany(ctx context.Context, ids []string) ([]Charity, error)
}
