package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
)

// LocalTransactionsKey is the single key holding the serialized donation list.
const LocalTransactionsKey = "donation_transactions"

// KVStore is the slice of the device key-value store the local repos need.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// localRecord is the on-disk shape. Every optional field may be missing in
// files written by older clients.
type localRecord struct {
	ID              string              `json:"id"`
	DonorID         string              `json:"donor_id"`
	CharityID       *string             `json:"charity_id,omitempty"`
	Amount          decimal.NullDecimal `json:"amount"`
	EthAmount       decimal.NullDecimal `json:"eth_amount"`
	TransactionHash string              `json:"transaction_hash,omitempty"`
	Status          string              `json:"status,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// LocalDonationStore implements domain.DonationStore on top of the device
// key-value store.
type LocalDonationStore struct {
	kv     KVStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewLocalDonationStore(kv KVStore, logger zerolog.Logger) *LocalDonationStore {
	return &LocalDonationStore{kv: kv, logger: logger, now: time.Now}
}

// Provenance reports that records from this store originate on the device.
func (s *LocalDonationStore) Provenance() domain.Provenance {
	return domain.ProvenanceLocal
}

// FetchDonations returns the user's donations, newest first.
func (s *LocalDonationStore) FetchDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	raw, err := s.kv.Get(ctx, LocalTransactionsKey)
	if err != nil {
		return nil, unavailable("read local donations", err)
	}
	items := []domain.Donation{}
	for _, entry := range s.decode(raw) {
		if !entry.ok || entry.rec.DonorID != userID {
			continue
		}
		items = append(items, entry.rec.toDomain())
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// InsertDonation appends a locally originated donation. Inserting a second
// record with an already stored transaction hash returns the stored one.
func (s *LocalDonationStore) InsertDonation(ctx context.Context, donation domain.Donation) (domain.Donation, error) {
	if err := donation.Validate(); err != nil {
		return domain.Donation{}, err
	}
	if donation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Donation{}, fmt.Errorf("generate donation id: %w", err)
		}
		donation.ID = id.String()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = s.now().UTC()
	}
	if donation.Status == "" {
		donation.Status = s.Provenance().DefaultStatus()
	}

	var stored domain.Donation
	err := s.kv.Update(ctx, LocalTransactionsKey, func(current []byte) ([]byte, error) {
		entries := s.decode(current)
		if donation.TransactionHash != "" {
			for _, entry := range entries {
				if entry.ok && entry.rec.TransactionHash == donation.TransactionHash {
					stored = entry.rec.toDomain()
					return nil, nil
				}
			}
		}
		added, err := newEntry(fromDomain(donation))
		if err != nil {
			return nil, err
		}
		stored = donation
		return encode(append(entries, added))
	})
	if err != nil {
		return domain.Donation{}, unavailable("write local donations", err)
	}
	return stored, nil
}

// UpdateStatus settles the record carrying hash inside one store transaction
// so concurrent settlements of the same hash serialize.
func (s *LocalDonationStore) UpdateStatus(ctx context.Context, hash string, status domain.Status) (domain.Donation, error) {
	if !status.Valid() {
		return domain.Donation{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidDonation, status)
	}
	if strings.TrimSpace(hash) == "" {
		return domain.Donation{}, domain.ErrNotFound
	}

	var result domain.Donation
	err := s.kv.Update(ctx, LocalTransactionsKey, func(current []byte) ([]byte, error) {
		entries := s.decode(current)
		for i := range entries {
			if !entries[i].ok || entries[i].rec.TransactionHash != hash {
				continue
			}
			existing := entries[i].rec.toDomain()
			if existing.Status == "" {
				existing.Status = s.Provenance().DefaultStatus()
			}
			if !existing.Status.CanTransition(status) {
				return nil, fmt.Errorf("%w: %s is %s, cannot become %s", domain.ErrReconciliationConflict, hash, existing.Status, status)
			}
			if existing.Status == status {
				result = existing
				return nil, nil
			}
			rec := entries[i].rec
			rec.Status = string(status)
			updated, err := newEntry(rec)
			if err != nil {
				return nil, err
			}
			entries[i] = updated
			result = rec.toDomain()
			return encode(entries)
		}
		return nil, domain.ErrNotFound
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrReconciliationConflict):
		return domain.Donation{}, err
	default:
		return domain.Donation{}, unavailable("update local donation", err)
	}
}

// storedEntry keeps the raw bytes of each list element so entries that no
// longer parse survive rewrites of the list untouched.
type storedEntry struct {
	raw json.RawMessage
	rec localRecord
	ok  bool
}

func newEntry(rec localRecord) (storedEntry, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return storedEntry{}, err
	}
	return storedEntry{raw: raw, rec: rec, ok: true}, nil
}

func (s *LocalDonationStore) decode(raw []byte) []storedEntry {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Warn().Err(err).Msg("local store: donation list unreadable, treating as empty")
		return nil
	}
	entries := make([]storedEntry, 0, len(list))
	for i, item := range list {
		entry := storedEntry{raw: item}
		if err := json.Unmarshal(item, &entry.rec); err != nil {
			s.logger.Warn().Err(err).Int("index", i).Msg("local store: skipping unreadable donation")
		} else {
			entry.ok = true
		}
		entries = append(entries, entry)
	}
	return entries
}

func encode(entries []storedEntry) ([]byte, error) {
	list := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry.raw)
	}
	return json.Marshal(list)
}

func (r localRecord) toDomain() domain.Donation {
	d := domain.Donation{
		ID:              r.ID,
		UserID:          r.DonorID,
		CharityID:       r.CharityID,
		AmountFiat:      r.Amount,
		AmountCrypto:    r.EthAmount,
		TransactionHash: r.TransactionHash,
		CreatedAt:       r.CreatedAt,
	}
	if s, ok := domain.ParseStatus(r.Status); ok {
		d.Status = s
	}
	return d
}

func fromDomain(d domain.Donation) localRecord {
	return localRecord{
		ID:              d.ID,
		DonorID:         d.UserID,
		CharityID:       d.CharityID,
		Amount:          d.AmountFiat,
		EthAmount:       d.AmountCrypto,
		TransactionHash: d.TransactionHash,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt,
	}
}

var _ domain.DonationStore = (*LocalDonationStore)(nil)
