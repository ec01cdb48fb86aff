package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
)

// Batch is a set of donations read from one backend. The provenance decides
// the status assumed for records that carry none.
type Batch struct {
	Provenance domain.Provenance
	Records    []domain.Donation
}

// Normalize merges donations with their charities into views ordered newest
// first, ties broken by id descending. It performs no I/O and does not
// modify its inputs.
func Normalize(charities map[string]domain.Charity, batches ...Batch) []domain.TransactionView {
	size := 0
	for _, b := range batches {
		size += len(b.Records)
	}
	views := make([]domain.TransactionView, 0, size)
	for _, b := range batches {
		for _, d := range b.Records {
			views = append(views, normalizeOne(d, b.Provenance, charities))
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		return viewLess(views[i], views[j])
	})
	return views
}

func normalizeOne(d domain.Donation, prov domain.Provenance, charities map[string]domain.Charity) domain.TransactionView {
	charity := domain.UnknownCharity
	if d.CharityID != nil {
		if ch, ok := charities[*d.CharityID]; ok {
			charity = ch
		}
	}
	amount := decimal.Zero
	if d.AmountFiat.Valid {
		amount = d.AmountFiat.Decimal
	}
	status := d.Status
	if !status.Valid() {
		status = prov.DefaultStatus()
	}
	return domain.TransactionView{
		ID:              d.ID,
		UserID:          d.UserID,
		Charity:         charity,
		AmountFiat:      amount,
		AmountCrypto:    d.AmountCrypto,
		TransactionHash: d.TransactionHash,
		Status:          status,
		Provenance:      prov,
		CreatedAt:       d.CreatedAt,
	}
}

// viewLess orders a before b when a is newer, or equally old with the
// greater id.
func viewLess(a, b domain.TransactionView) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return compareIDs(a.ID, b.ID) > 0
}

// compareIDs compares integer ids numerically and anything else as text.
func compareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
