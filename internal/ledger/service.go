// Package ledger assembles a user's donation history from the configured
// store, the charity catalog and locally pending blockchain submissions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"donationledger/internal/domain"
)

// Service runs refresh cycles and routes writes to the store and reconciler.
type Service struct {
	store      domain.DonationStore
	resolver   *Resolver
	reconciler *Reconciler
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(store domain.DonationStore, resolver *Resolver, reconciler *Reconciler, logger zerolog.Logger) *Service {
	if reconciler == nil {
		reconciler = NewReconciler()
	}
	return &Service{
		store:      store,
		resolver:   resolver,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}
}

// History runs one refresh cycle for userID: fetch, overlay pending local
// records, resolve charities and normalize. An empty history is an empty
// slice with a nil error; store failures wrap domain.ErrStoreUnavailable.
func (s *Service) History(ctx context.Context, userID string) ([]domain.TransactionView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.store.FetchDonations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prov := s.store.Provenance()
	pending := s.reconciler.Merge(userID, records, prov)

	ids := make([]string, 0, len(records)+len(pending))
	for _, group := range [][]domain.Donation{records, pending} {
		for _, d := range group {
			if d.CharityID != nil {
				ids = append(ids, *d.CharityID)
			}
		}
	}
	charities, err := s.resolver.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Normalize(charities,
		Batch{Provenance: prov, Records: records},
		Batch{Provenance: domain.ProvenanceLocal, Records: pending},
	), nil
}

// Record stores a donation that is already confirmed.
func (s *Service) Record(ctx context.Context, d domain.Donation) (domain.Donation, error) {
	if d.Status == "" {
		d.Status = domain.StatusCompleted
	}
	if err := d.Validate(); err != nil {
		return domain.Donation{}, err
	}
	stored, err := s.store.InsertDonation(ctx, d)
	if err != nil {
		return domain.Donation{}, err
	}
	s.logger.Info().Str("donation_id", stored.ID).Str("user_id", stored.UserID).Msg("ledger: donation recorded")
	return stored, nil
}

// Submit saves a donation ahead of its blockchain submission. It is held as
// pending until settled; in local mode it is also written to the store.
func (s *Service) Submit(ctx context.Context, d domain.Donation) (domain.Donation, error) {
	if strings.TrimSpace(d.TransactionHash) == "" {
		return domain.Donation{}, fmt.Errorf("%w: %w", domain.ErrInvalidDonation, ErrMissingHash)
	}
	d.Status = domain.StatusPending
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	if d.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Donation{}, fmt.Errorf("generate donation id: %w", err)
		}
		d.ID = id.String()
	}
	if err := d.Validate(); err != nil {
		return domain.Donation{}, err
	}
	if s.store.Provenance() == domain.ProvenanceLocal {
		stored, err := s.store.InsertDonation(ctx, d)
		if err != nil {
			return domain.Donation{}, err
		}
		if stored.Status.Terminal() {
			return stored, nil
		}
		d = stored
	}
	held, err := s.reconciler.Track(d)
	if err != nil {
		return domain.Donation{}, err
	}
	s.logger.Info().Str("tx_hash", held.TransactionHash).Str("user_id", held.UserID).Msg("ledger: pending donation saved")
	return held, nil
}

// UpdateStatus settles the donation carrying hash. The held record is checked
// first so a backward move is rejected before the store is touched, and it is
// only changed once the store write has succeeded or the store does not know
// the hash. Not found is reported only when neither side knows the hash.
func (s *Service) UpdateStatus(ctx context.Context, hash string, status domain.Status) (domain.Donation, error) {
	if _, err := s.reconciler.Check(hash, status); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Donation{}, err
	}

	stored, err := s.store.UpdateStatus(ctx, hash, status)
	switch {
	case err == nil:
		if _, heldErr := s.reconciler.UpdateStatus(hash, status); heldErr != nil && !errors.Is(heldErr, domain.ErrNotFound) {
			s.logger.Warn().Err(heldErr).Str("tx_hash", hash).Msg("ledger: held record diverged from store")
		}
		s.logger.Info().Str("tx_hash", hash).Str("status", string(status)).Msg("ledger: donation settled")
		return stored, nil
	case errors.Is(err, domain.ErrNotFound):
		held, heldErr := s.reconciler.UpdateStatus(hash, status)
		if errors.Is(heldErr, domain.ErrNotFound) {
			return domain.Donation{}, err
		}
		if heldErr != nil {
			return domain.Donation{}, heldErr
		}
		s.logger.Info().Str("tx_hash", hash).Str("status", string(status)).Msg("ledger: pending donation settled, awaiting store")
		return held, nil
	default:
		return domain.Donation{}, err
	}
}
