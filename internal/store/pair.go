package store

import (
	"context"
	"fmt"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// PairStore keeps the currency_pairs table that orders reference through
// (base_currency, quote_currency).
type PairStore struct {
	db dbtx
}

func NewPairStore(db dbtx) *PairStore {
	return &PairStore{db: db}
}

// Add lists p; it reports false when the pair was already there.
func (s *PairStore) Add(ctx context.Context, p models.Pair) (bool, error) {
	query := `INSERT INTO currency_pairs (base, quote) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, p.Base, p.Quote)
	if err != nil {
		return false, fmt.Errorf("add pair %s: %w", p.Symbol(), err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PairStore) List(ctx context.Context) ([]models.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT base, quote FROM currency_pairs ORDER BY base, quote`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []models.Pair
	for rows.Next() {
		var p models.Pair
		if err := rows.Scan(&p.Base, &p.Quote); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
