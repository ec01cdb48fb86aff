package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"donationledger/internal/domain"
)

// ErrMissingHash is returned when tracking a record without a transaction hash.
var ErrMissingHash = errors.New("transaction hash is required")

// Reconciler holds locally originated donations from blockchain submission
// until the authoritative store shows them settled. It is scoped to the
// process; all access goes through one mutex so updates of a hash serialize.
type Reconciler struct {
	mu      sync.Mutex
	pending map[string]domain.Donation
}

func NewReconciler() *Reconciler {
	return &Reconciler{pending: make(map[string]domain.Donation)}
}

// Track starts holding d as pending. Tracking a hash that is already held
// keeps the held record.
func (r *Reconciler) Track(d domain.Donation) (domain.Donation, error) {
	if strings.TrimSpace(d.TransactionHash) == "" {
		return domain.Donation{}, ErrMissingHash
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.pending[d.TransactionHash]; ok {
		return held, nil
	}
	d.Status = domain.StatusPending
	r.pending[d.TransactionHash] = d
	return d, nil
}

// UpdateStatus moves the held record forward. Backward or cross-terminal
// moves are rejected with domain.ErrReconciliationConflict and change nothing.
func (r *Reconciler) UpdateStatus(hash string, status domain.Status) (domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	held, err := r.transition(hash, status)
	if err != nil {
		return held, err
	}
	held.Status = status
	r.pending[hash] = held
	return held, nil
}

// Check reports whether UpdateStatus(hash, status) would succeed without
// applying it. It returns the held record as it is now.
func (r *Reconciler) Check(hash string, status domain.Status) (domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(hash, status)
}

// transition validates a move of the held record. r.mu must be held.
func (r *Reconciler) transition(hash string, status domain.Status) (domain.Donation, error) {
	if !status.Valid() {
		return domain.Donation{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidDonation, status)
	}
	held, ok := r.pending[hash]
	if !ok {
		return domain.Donation{}, domain.ErrNotFound
	}
	if !held.Status.CanTransition(status) {
		return held, fmt.Errorf("%w: %s is %s, cannot become %s", domain.ErrReconciliationConflict, hash, held.Status, status)
	}
	return held, nil
}

// Get returns the held record for hash.
func (r *Reconciler) Get(hash string) (domain.Donation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.pending[hash]
	return d, ok
}

// Merge returns the held records of userID that no authoritative record
// carries yet; where both exist the authoritative one wins. Held records the
// authoritative store already shows settled are released.
func (r *Reconciler) Merge(userID string, authoritative []domain.Donation, prov domain.Provenance) []domain.Donation {
	known := make(map[string]domain.Status, len(authoritative))
	for _, d := range authoritative {
		if d.TransactionHash == "" {
			continue
		}
		status := d.Status
		if !status.Valid() {
			status = prov.DefaultStatus()
		}
		known[d.TransactionHash] = status
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Donation
	for hash, held := range r.pending {
		if held.UserID != userID {
			continue
		}
		if status, ok := known[hash]; ok {
			if status.Terminal() {
				delete(r.pending, hash)
			}
			continue
		}
		out = append(out, held)
	}
	return out
}

// Pending reports how many records are held.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
