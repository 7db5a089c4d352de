package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// serializationRetries is how many times a unit of work is rerun after
// Postgres aborts it with a serialization failure or deadlock.
const serializationRetries = 2

// WithTransaction runs fn in a serializable transaction. Balance rows are
// read with SELECT ... FOR UPDATE so concurrent fills touching the same
// account and currency queue behind each other. A transaction Postgres
// aborted for serialization wrote nothing and is rerun, so fn must not
// depend on state it changed in an earlier attempt.
func (s *PostgresStore) WithTransaction(ctx context.Context, fn ledger.TxFunc) error {
	return retrySerializable(ctx, serializationRetries, func() error {
		return s.runTransaction(ctx, fn)
	})
}

func (s *PostgresStore) runTransaction(ctx context.Context, fn ledger.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx failed: %w, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func retrySerializable(ctx context.Context, retries int, run func() error) error {
	for attempt := 0; ; attempt++ {
		err := run()
		if err == nil || attempt >= retries || !isSerializationFailure(err) {
			return err
		}
		backoff := time.NewTimer(time.Duration(attempt+1) * 5 * time.Millisecond)
		select {
		case <-ctx.Done():
			backoff.Stop()
			return err
		case <-backoff.C:
		}
	}
}

// isSerializationFailure matches SQLSTATE 40001 and 40P01.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getOrderRow(ctx context.Context, q queryer, id int64, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrOrderNotFound, id)
	}
	return o, err
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetBalance(ctx context.Context, accountID int64, currency string) (decimal.Decimal, error) {
	query := `SELECT amount FROM balances WHERE account_id = $1 AND currency = $2 FOR UPDATE`
	var amount decimal.Decimal
	err := t.tx.QueryRowContext(ctx, query, accountID, currency).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("select balance: %w", err)
	}
	return amount, nil
}

func (t *pgTx) AdjustBalance(ctx context.Context, accountID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	insert := `
		INSERT INTO balances (account_id, currency, amount)
		VALUES ($1, $2, 0)
		ON CONFLICT (account_id, currency) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, insert, accountID, currency); err != nil {
		return decimal.Zero, fmt.Errorf("ensure balance row: %w", err)
	}

	current, err := t.GetBalance(ctx, accountID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return current, fmt.Errorf("%w: account %d %s has %s, delta %s",
			ledger.ErrNegativeBalance, accountID, currency, current, delta)
	}

	update := `
		UPDATE balances
		SET amount = $1, updated_at = NOW()
		WHERE account_id = $2 AND currency = $3
	`
	if _, err := t.tx.ExecContext(ctx, update, next, accountID, currency); err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}
	return next, nil
}

func (t *pgTx) CommittedBalance(ctx context.Context, accountID int64, currency string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN side = 'buy'
				THEN (quantity - filled_quantity) * limit_price
				ELSE quantity - filled_quantity
			END), 0)
		FROM orders
		WHERE account_id = $1
		  AND status IN ('pending', 'partial')
		  AND (type = 'limit' OR status = 'pending')
		  AND ((side = 'buy' AND quote_currency = $2 AND limit_price IS NOT NULL)
		    OR (side = 'sell' AND base_currency = $2))
	`
	var total decimal.Decimal
	if err := t.tx.QueryRowContext(ctx, query, accountID, currency).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum committed: %w", err)
	}
	return total, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (account_id, pair, base_currency, quote_currency, side, type,
			limit_price, quantity, filled_quantity, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING id
	`

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt

	return t.tx.QueryRowContext(
		ctx,
		query,
		o.AccountID,
		o.Pair,
		o.BaseCurrency,
		o.QuoteCurrency,
		o.Side,
		o.Type,
		o.LimitPrice,
		o.Quantity,
		o.FilledQuantity,
		o.Status,
		o.CreatedAt,
	).Scan(&o.ID)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *models.Order) error {
	query := `
		UPDATE orders
		SET filled_quantity = $1, status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, o.FilledQuantity, o.Status, o.ID).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ledger.ErrOrderNotFound, o.ID)
	}
	return err
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrderRow(ctx, t.tx, id, true)
}

func (t *pgTx) InsertTrade(ctx context.Context, tr *models.Trade) error {
	query := `
		INSERT INTO trades (pair, buy_order_id, sell_order_id, buyer_account_id, seller_account_id,
			price, quantity, taker_side, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`
	return t.tx.QueryRowContext(
		ctx,
		query,
		tr.Pair,
		tr.BuyOrderID,
		tr.SellOrderID,
		tr.BuyerAccountID,
		tr.SellerAccountID,
		tr.Price,
		tr.Quantity,
		tr.TakerSide,
		tr.ExecutedAt,
	).Scan(&tr.ID)
}
