package repo

import (
	"context"

	"donationledger/internal/domain"
	"donationledger/internal/infra"
	"donationledger/internal/sqlinline"
)

// CharityRepositoryPG reads charity display data from the remote catalog.
type CharityRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewCharityRepository(sql infra.SQLExecutor) *CharityRepositoryPG {
	return &CharityRepositoryPG{sql: sql}
}

// GetMany returns the charities whose ids are listed, in no particular order.
func (r *CharityRepositoryPG) GetMany(ctx context.Context, ids []string) ([]domain.Charity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QCharitiesByIDs, ids)
	if err != nil {
		return nil, unavailable("fetch charities", err)
	}
	defer rows.Close()

	var items []domain.Charity
	for rows.Next() {
		var c domain.Charity
		if err := rows.Scan(&c.ID, &c.Name, &c.WalletAddress); err != nil {
			return nil, unavailable("scan charity", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch charities", err)
	}
	return items, nil
}

var _ domain.CharityRepository = (*CharityRepositoryPG)(nil)
