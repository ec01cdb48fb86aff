package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
	"donationledger/internal/infra"
	"donationledger/internal/sqlinline"
)

// DonationRepositoryPG implements domain.DonationStore against the remote
// Postgres donations table.
type DonationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDonationRepository creates a new donation repo.
func NewDonationRepository(sql infra.SQLExecutor) *DonationRepositoryPG {
	return &DonationRepositoryPG{sql: sql}
}

// Provenance reports that rows from this store are server-confirmed.
func (r *DonationRepositoryPG) Provenance() domain.Provenance {
	return domain.ProvenanceRemote
}

// FetchDonations returns the user's donations ordered by created_at desc.
func (r *DonationRepositoryPG) FetchDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUserDonations, userID)
	if err != nil {
		return nil, unavailable("fetch donations", err)
	}
	defer rows.Close()

	items := []domain.Donation{}
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, unavailable("scan donation", err)
		}
		items = append(items, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch donations", err)
	}
	return items, nil
}

// InsertDonation stores a confirmed donation and returns the stored row.
func (r *DonationRepositoryPG) InsertDonation(ctx context.Context, donation domain.Donation) (domain.Donation, error) {
	if err := donation.Validate(); err != nil {
		return domain.Donation{}, err
	}
	status := donation.Status
	if status == "" {
		status = r.Provenance().DefaultStatus()
	}
	var createdAt *time.Time
	if !donation.CreatedAt.IsZero() {
		t := donation.CreatedAt.UTC()
		createdAt = &t
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertDonation,
		donation.ID,
		donation.UserID,
		stringOrEmpty(donation.CharityID),
		decimalArg(donation.AmountFiat),
		decimalArg(donation.AmountCrypto),
		donation.TransactionHash,
		string(status),
		createdAt,
	)
	stored, err := scanDonation(row)
	if err != nil {
		return domain.Donation{}, unavailable("insert donation", err)
	}
	return stored, nil
}

// UpdateStatus settles the donation carrying hash. Rows already settled with
// a different status are left untouched and reported as a conflict.
func (r *DonationRepositoryPG) UpdateStatus(ctx context.Context, hash string, status domain.Status) (domain.Donation, error) {
	if !status.Valid() {
		return domain.Donation{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidDonation, status)
	}
	if strings.TrimSpace(hash) == "" {
		return domain.Donation{}, domain.ErrNotFound
	}
	updated, err := scanDonation(r.sql.QueryRow(ctx, sqlinline.QSettleDonation, hash, string(status)))
	if err == nil {
		return updated, nil
	}
	if !infra.IsNoRows(err) {
		return domain.Donation{}, unavailable("update donation status", err)
	}

	var current string
	if err := r.sql.QueryRow(ctx, sqlinline.QDonationStatusByHash, hash).Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return domain.Donation{}, domain.ErrNotFound
		}
		return domain.Donation{}, unavailable("read donation status", err)
	}
	return domain.Donation{}, fmt.Errorf("%w: %s is %s, cannot become %s", domain.ErrReconciliationConflict, hash, current, status)
}

func scanDonation(row pgx.Row) (domain.Donation, error) {
	var (
		d            domain.Donation
		charityID    *string
		amountFiat   *string
		amountCrypto *string
		hash         *string
		status       *string
	)
	if err := row.Scan(&d.ID, &d.UserID, &charityID, &amountFiat, &amountCrypto, &hash, &status, &d.CreatedAt); err != nil {
		return domain.Donation{}, err
	}
	d.CharityID = charityID
	var err error
	if d.AmountFiat, err = parseDecimal(amountFiat); err != nil {
		return domain.Donation{}, err
	}
	if d.AmountCrypto, err = parseDecimal(amountCrypto); err != nil {
		return domain.Donation{}, err
	}
	if hash != nil {
		d.TransactionHash = *hash
	}
	if status != nil {
		if s, ok := domain.ParseStatus(*status); ok {
			d.Status = s
		}
	}
	return d, nil
}

func parseDecimal(v *string) (decimal.NullDecimal, error) {
	if v == nil || *v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse amount %q: %w", *v, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func decimalArg(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := v.Decimal.String()
	return &s
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

var _ domain.DonationStore = (*DonationRepositoryPG)(nil)
