package repo

import (
	"context"
	"encoding/json"
	"sort"

	"donationledger/internal/domain"
)

// LocalCharitiesKey holds the device copy of the charity catalog.
const LocalCharitiesKey = "charities"

type localCharity struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// LocalCharityCatalog serves charity lookups in local mode.
type LocalCharityCatalog struct {
	kv KVStore
}

func NewLocalCharityCatalog(kv KVStore) *LocalCharityCatalog {
	return &LocalCharityCatalog{kv: kv}
}

// GetMany returns the stored charities whose ids are listed.
func (c *LocalCharityCatalog) GetMany(ctx context.Context, ids []string) ([]domain.Charity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := c.kv.Get(ctx, LocalCharitiesKey)
	if err != nil {
		return nil, unavailable("read local charities", err)
	}
	catalog, err := decodeCharities(raw)
	if err != nil {
		return nil, unavailable("decode local charities", err)
	}
	var out []domain.Charity
	for _, id := range ids {
		if ch, ok := catalog[id]; ok {
			out = append(out, domain.Charity{ID: ch.ID, Name: ch.Name, WalletAddress: ch.WalletAddress})
		}
	}
	return out, nil
}

// Put upserts charities into the device catalog by id.
func (c *LocalCharityCatalog) Put(ctx context.Context, charities ...domain.Charity) error {
	err := c.kv.Update(ctx, LocalCharitiesKey, func(current []byte) ([]byte, error) {
		catalog, err := decodeCharities(current)
		if err != nil {
			return nil, err
		}
		for _, ch := range charities {
			if ch.ID == "" {
				continue
			}
			catalog[ch.ID] = localCharity{ID: ch.ID, Name: ch.Name, WalletAddress: ch.WalletAddress}
		}
		list := make([]localCharity, 0, len(catalog))
		for _, ch := range catalog {
			list = append(list, ch)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		return json.Marshal(list)
	})
	if err != nil {
		return unavailable("write local charities", err)
	}
	return nil
}

func decodeCharities(raw []byte) (map[string]localCharity, error) {
	catalog := map[string]localCharity{}
	if len(raw) == 0 {
		return catalog, nil
	}
	var list []localCharity
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	for _, ch := range list {
		catalog[ch.ID] = ch
	}
	return catalog, nil
}

var _ domain.CharityRepository = (*LocalCharityCatalog)(nil)
