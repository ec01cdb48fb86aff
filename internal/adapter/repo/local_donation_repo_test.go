package repo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
	"donationledger/internal/storage"
)

func newBolt(t *testing.T) *storage.BoltStore {
	t.Helper()
	s, err := storage.OpenBolt(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newLocalStore(t *testing.T) (*LocalDonationStore, *storage.BoltStore) {
	t.Helper()
	kv := newBolt(t)
	return NewLocalDonationStore(kv, zerolog.Nop()), kv
}

func TestLocalInsertDefaultsToPending(t *testing.T) {
	s, _ := newLocalStore(t)
	stored, err := s.InsertDonation(context.Background(), domain.Donation{
		UserID:          "u1",
		AmountFiat:      decimal.NewNullDecimal(decimal.NewFromInt(10)),
		TransactionHash: "0xabc",
	})
	if err != nil {
		t.Fatalf("InsertDonation error: %v", err)
	}
	if stored.ID == "" || stored.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be stamped, got %+v", stored)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %q", stored.Status)
	}
}

func TestLocalInsertSameHashReturnsStored(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	first, err := s.InsertDonation(ctx, domain.Donation{UserID: "u1", TransactionHash: "0xabc"})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, err := s.InsertDonation(ctx, domain.Donation{UserID: "u1", TransactionHash: "0xabc"})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stored record %q, got %q", first.ID, second.ID)
	}
	items, _ := s.FetchDonations(ctx, "u1")
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
}

func TestLocalFetchIsScopedToUser(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, user := range []string{"u1", "u2", "u1", "u3"} {
		_, err := s.InsertDonation(ctx, domain.Donation{UserID: user, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	items, err := s.FetchDonations(ctx, "u1")
	if err != nil {
		t.Fatalf("FetchDonations error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}
	for _, item := range items {
		if item.UserID != "u1" {
			t.Fatalf("record for %q leaked into u1 history", item.UserID)
		}
	}
	if !items[0].CreatedAt.After(items[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", items[0].CreatedAt, items[1].CreatedAt)
	}
}

func TestLocalFetchEmpty(t *testing.T) {
	s, _ := newLocalStore(t)
	items, err := s.FetchDonations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("FetchDonations error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestLocalUpdateStatusForwardOnly(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	if _, err := s.InsertDonation(ctx, domain.Donation{UserID: "u1", TransactionHash: "0xabc"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.UpdateStatus(ctx, "0xabc", domain.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}

	if _, err := s.UpdateStatus(ctx, "0xabc", domain.StatusCompleted); err != nil {
		t.Fatalf("re-applying completed should be a no-op, got %v", err)
	}
	for _, next := range []domain.Status{domain.StatusPending, domain.StatusFailed} {
		if _, err := s.UpdateStatus(ctx, "0xabc", next); !errors.Is(err, domain.ErrReconciliationConflict) {
			t.Fatalf("moving to %s: expected ErrReconciliationConflict, got %v", next, err)
		}
	}

	items, _ := s.FetchDonations(ctx, "u1")
	if items[0].Status != domain.StatusCompleted {
		t.Fatalf("expected stored status to stay completed, got %q", items[0].Status)
	}
}

func TestLocalUpdateStatusUnknownHash(t *testing.T) {
	s, _ := newLocalStore(t)
	if _, err := s.UpdateStatus(context.Background(), "0xmissing", domain.StatusCompleted); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	items, _ := s.FetchDonations(context.Background(), "u1")
	if len(items) != 0 {
		t.Fatalf("UpdateStatus must not create records, got %d", len(items))
	}
}

func TestLocalConcurrentSettlementsKeepOneOutcome(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	if _, err := s.InsertDonation(ctx, domain.Donation{UserID: "u1", TransactionHash: "0xabc"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []domain.Status
	)
	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusCompleted, domain.StatusFailed} {
		wg.Add(1)
		go func(status domain.Status) {
			defer wg.Done()
			if _, err := s.UpdateStatus(ctx, "0xabc", status); err == nil {
				mu.Lock()
				succeeded = append(succeeded, status)
				mu.Unlock()
			}
		}(status)
	}
	wg.Wait()

	if len(succeeded) == 0 {
		t.Fatal("expected at least one settlement to succeed")
	}
	for _, status := range succeeded {
		if status != succeeded[0] {
			t.Fatalf("conflicting settlements both succeeded: %v", succeeded)
		}
	}
	items, _ := s.FetchDonations(ctx, "u1")
	if items[0].Status != succeeded[0] {
		t.Fatalf("stored status %q does not match winner %q", items[0].Status, succeeded[0])
	}
}

func TestLocalToleratesLegacyEntries(t *testing.T) {
	s, kv := newLocalStore(t)
	ctx := context.Background()
	legacy := `[
		{"id":"1700000000000","donor_id":"u1","transaction_hash":"0xold","created_at":"2024-01-01T00:00:00Z"},
		{"id":"broken","donor_id":"u1","amount":"not-a-number"},
		{"id":"1700000000001","donor_id":"u1","amount":12.5,"eth_amount":"0.004","status":"failed","created_at":"2024-01-02T00:00:00Z"}
	]`
	if err := kv.Put(ctx, LocalTransactionsKey, []byte(legacy)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := s.FetchDonations(ctx, "u1")
	if err != nil {
		t.Fatalf("FetchDonations error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected unreadable entry to be skipped, got %d records", len(items))
	}
	if items[0].ID != "1700000000001" || !items[0].AmountFiat.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected newest record: %+v", items[0])
	}
	if items[1].AmountFiat.Valid || items[1].Status != "" {
		t.Fatalf("expected missing fields to stay empty, got %+v", items[1])
	}

	if _, err := s.UpdateStatus(ctx, "0xold", domain.StatusCompleted); err != nil {
		t.Fatalf("settling a legacy pending record: %v", err)
	}
	raw, _ := kv.Get(ctx, LocalTransactionsKey)
	if !strings.Contains(string(raw), `"id":"broken"`) {
		t.Fatalf("unreadable entry was dropped on rewrite: %s", raw)
	}
}
