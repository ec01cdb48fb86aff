package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
)

// memStore is an in-memory DonationStore with a switchable failure.
type memStore struct {
	mu      sync.Mutex
	prov    domain.Provenance
	records []domain.Donation
	err     error
	fetches int
}

func (m *memStore) Provenance() domain.Provenance { return m.prov }

func (m *memStore) FetchDonations(_ context.Context, userID string) ([]domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	out := []domain.Donation{}
	for _, d := range m.records {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) InsertDonation(_ context.Context, d domain.Donation) (domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Donation{}, m.err
	}
	if d.ID == "" {
		d.ID = "gen-" + d.TransactionHash
	}
	if d.Status == "" {
		d.Status = m.prov.DefaultStatus()
	}
	m.records = append(m.records, d)
	return d, nil
}

func (m *memStore) UpdateStatus(_ context.Context, hash string, status domain.Status) (domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Donation{}, m.err
	}
	for i := range m.records {
		if m.records[i].TransactionHash != hash {
			continue
		}
		current := m.records[i].Status
		if current == "" {
			current = m.prov.DefaultStatus()
		}
		if !current.CanTransition(status) {
			return domain.Donation{}, domain.ErrReconciliationConflict
		}
		m.records[i].Status = status
		return m.records[i], nil
	}
	return domain.Donation{}, domain.ErrNotFound
}

func (m *memStore) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memStore) add(d domain.Donation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, d)
}

// memCharities records every id batch it is asked for.
type memCharities struct {
	mu      sync.Mutex
	byID    map[string]domain.Charity
	batches [][]string
	err     error
}

func newMemCharities(charities ...domain.Charity) *memCharities {
	m := &memCharities{byID: map[string]domain.Charity{}}
	for _, ch := range charities {
		m.byID[ch.ID] = ch
	}
	return m
}

func (m *memCharities) GetMany(_ context.Context, ids []string) ([]domain.Charity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), ids...))
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Charity
	for _, id := range ids {
		if ch, ok := m.byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *memCharities) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func fiat(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}
