package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// PostgresStore is the production ledger.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

const orderColumns = `id, account_id, pair, base_currency, quote_currency, side, type,
	limit_price, quantity, filled_quantity, status, created_at, updated_at`

const tradeColumns = `id, pair, buy_order_id, sell_order_id, buyer_account_id, seller_account_id,
	price, quantity, taker_side, executed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.Pair,
		&o.BaseCurrency,
		&o.QuoteCurrency,
		&o.Side,
		&o.Type,
		&o.LimitPrice,
		&o.Quantity,
		&o.FilledQuantity,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(
		&t.ID,
		&t.Pair,
		&t.BuyOrderID,
		&t.SellOrderID,
		&t.BuyerAccountID,
		&t.SellerAccountID,
		&t.Price,
		&t.Quantity,
		&t.TakerSide,
		&t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrderRow(ctx, s.db, id, false)
}

func (s *PostgresStore) ListOrders(ctx context.Context, accountID int64) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE account_id = $1 ORDER BY id`
	return s.queryOrders(ctx, query, accountID)
}

func (s *PostgresStore) OpenOrders(ctx context.Context) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ('pending', 'partial') AND type = 'limit'
		ORDER BY created_at, id
	`
	return s.queryOrders(ctx, query)
}

func (s *PostgresStore) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) Balances(ctx context.Context, accountID int64) ([]*models.Balance, error) {
	query := `
		SELECT account_id, currency, amount, updated_at
		FROM balances
		WHERE account_id = $1
		ORDER BY currency
	`
	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.AccountID, &b.Currency, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

func (s *PostgresStore) RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE pair = $1 ORDER BY id DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]*models.Trade, 0, limit)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetDB() *sql.DB {
	return s.db
}
