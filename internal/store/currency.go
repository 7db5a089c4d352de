package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CurrencyStore keeps the currencies table that balances and pairs
// reference. The market registry owns name and precision.
type CurrencyStore struct {
	db dbtx
}

func NewCurrencyStore(db dbtx) *CurrencyStore {
	return &CurrencyStore{db: db}
}

// Upsert lists c, or relists it with the registry's name and precision.
func (s *CurrencyStore) Upsert(ctx context.Context, c *models.Currency) error {
	query := `
		INSERT INTO currencies (code, name, precision, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    precision = EXCLUDED.precision,
		    is_active = TRUE,
		    updated_at = EXCLUDED.updated_at
		WHERE currencies.name <> EXCLUDED.name
		   OR currencies.precision <> EXCLUDED.precision
		   OR NOT currencies.is_active
	`
	if _, err := s.db.ExecContext(ctx, query, c.Code, c.Name, c.Precision, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert currency %s: %w", c.Code, err)
	}
	return nil
}

// Deactivate flags every currency not in keep. Rows stay because old
// balances and orders reference them.
func (s *CurrencyStore) Deactivate(ctx context.Context, keep []string) (int64, error) {
	query := `
		UPDATE currencies SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND NOT (code = ANY($1))
	`
	res, err := s.db.ExecContext(ctx, query, pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("deactivate currencies: %w", err)
	}
	return res.RowsAffected()
}

// List returns currencies ordered by code, inactive ones included.
func (s *CurrencyStore) List(ctx context.Context) ([]*models.Currency, error) {
	query := `
		SELECT code, name, precision, is_active, created_at, updated_at
		FROM currencies
		ORDER BY code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []*models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Precision, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		currencies = append(currencies, &c)
	}
	return currencies, rows.Err()
}
