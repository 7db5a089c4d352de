package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// MarketSync reports what SyncMarkets changed and what the database holds
// beyond the registry.
type MarketSync struct {
	AddedPairs            int
	DeactivatedCurrencies int64
	// Inactive currencies are kept for the rows that reference them.
	Inactive []string
	// Unlisted pairs are in the database but not in the registry. They
	// stay, since their orders reference them, but the engine has no book
	// for them.
	Unlisted []models.Pair
}

// SyncMarkets writes the registry into the currencies and currency_pairs
// tables in one transaction. Ledger rows reference those tables, so a
// balance or order in an unlisted currency cannot be written.
func SyncMarkets(ctx context.Context, db *sql.DB, markets *models.Markets) (*MarketSync, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin market sync: %w", err)
	}
	defer tx.Rollback()

	currencies, pairs := NewCurrencyStore(tx), NewPairStore(tx)
	out := &MarketSync{}

	keep := make([]string, 0, len(markets.Currencies()))
	for _, c := range markets.Currencies() {
		if err := currencies.Upsert(ctx, c); err != nil {
			return nil, err
		}
		keep = append(keep, c.Code)
	}
	if out.DeactivatedCurrencies, err = currencies.Deactivate(ctx, keep); err != nil {
		return nil, err
	}

	for _, p := range markets.Pairs() {
		added, err := pairs.Add(ctx, p)
		if err != nil {
			return nil, err
		}
		if added {
			out.AddedPairs++
		}
	}

	all, err := currencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	for _, c := range all {
		if !c.IsActive {
			out.Inactive = append(out.Inactive, c.Code)
		}
	}

	stored, err := pairs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	for _, p := range stored {
		if _, ok := markets.Pair(p.Symbol()); !ok {
			out.Unlisted = append(out.Unlisted, p)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit market sync: %w", err)
	}
	return out, nil
}
