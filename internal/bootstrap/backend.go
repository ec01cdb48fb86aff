// Package bootstrap wires the configured store backend into a ledger service
// for the api and worker binaries.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"donationledger/internal/adapter/repo"
	"donationledger/internal/domain"
	"donationledger/internal/infra"
	"donationledger/internal/ledger"
	"donationledger/internal/storage"
)

// Backend holds the store and catalog chosen by STORE_BACKEND and the
// resources behind them.
type Backend struct {
	Name      string
	Store     domain.DonationStore
	Charities domain.CharityRepository
	closers   []func()
}

// Open connects the backend named in cfg. The caller must Close it.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case infra.BackendRemote:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		runner := infra.NewSQLRunner(pool, logger)
		return &Backend{
			Name:      infra.BackendRemote,
			Store:     repo.NewDonationRepository(runner),
			Charities: repo.NewCharityRepository(runner),
			closers:   []func(){pool.Close},
		}, nil
	case infra.BackendLocal:
		kv, err := storage.OpenBolt(cfg.LocalStorePath)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		catalog := repo.NewLocalCharityCatalog(kv)
		b := &Backend{
			Name:      infra.BackendLocal,
			Store:     repo.NewLocalDonationStore(kv, logger),
			Charities: catalog,
			closers: []func(){func() {
				if err := kv.Close(); err != nil {
					logger.Warn().Err(err).Msg("close local store")
				}
			}},
		}
		if cfg.LocalCharitiesFile != "" {
			n, err := SeedCharities(ctx, catalog, cfg.LocalCharitiesFile)
			if err != nil {
				b.Close()
				return nil, err
			}
			logger.Info().Int("charities", n).Str("file", cfg.LocalCharitiesFile).Msg("local charity catalog seeded")
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close releases the backend's resources.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// NewService builds the ledger service over b.
func NewService(cfg *infra.Config, b *Backend, logger zerolog.Logger) *ledger.Service {
	resolver := ledger.NewResolver(b.Charities, cfg.CharityCacheSize)
	return ledger.NewService(b.Store, resolver, ledger.NewReconciler(), logger)
}

type charitySeed struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
}

// SeedCharities upserts the charities listed in a JSON array file into the
// local catalog and reports how many were read.
func SeedCharities(ctx context.Context, catalog *repo.LocalCharityCatalog, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read charities file: %w", err)
	}
	var seeds []charitySeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return 0, fmt.Errorf("parse charities file %s: %w", path, err)
	}
	charities := make([]domain.Charity, 0, len(seeds))
	for _, s := range seeds {
		charities = append(charities, domain.Charity{ID: s.ID, Name: s.Name, WalletAddress: s.WalletAddress})
	}
	if err := catalog.Put(ctx, charities...); err != nil {
		return 0, err
	}
	return len(charities), nil
}
