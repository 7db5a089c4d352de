package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// Settler turns a fill into ledger writes: four balance deltas, two order
// updates and one trade row, all in a single transaction.
type Settler struct {
	ledger ledger.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewSettler(store ledger.Store, logger *zap.Logger) *Settler {
	return &Settler{
		ledger: store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type balanceDelta struct {
	key    models.BalanceKey
	amount decimal.Decimal
}

// deltas lists the balance changes of a trade sorted by (account, currency),
// the order rows are locked in.
func deltas(t *models.Trade, base, quote string) []balanceDelta {
	notional := t.Notional()
	ds := []balanceDelta{
		{key: models.BalanceKey{AccountID: t.BuyerAccountID, Currency: base}, amount: t.Quantity},
		{key: models.BalanceKey{AccountID: t.SellerAccountID, Currency: base}, amount: t.Quantity.Neg()},
		{key: models.BalanceKey{AccountID: t.BuyerAccountID, Currency: quote}, amount: notional.Neg()},
		{key: models.BalanceKey{AccountID: t.SellerAccountID, Currency: quote}, amount: notional},
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].key.Less(ds[j].key) })
	return ds
}

// ApplyFill commits trade against buy and sell. On success both orders are
// updated in place and trade carries its ledger id. On failure neither
// order is touched and the error wraps ErrInsufficientCounterBalance or
// ErrStorageConflict.
func (s *Settler) ApplyFill(ctx context.Context, trade *models.Trade, buy, sell *models.Order) error {
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageConflict, err)
	}

	at := trade.ExecutedAt
	if at.IsZero() {
		at = s.now()
		trade.ExecutedAt = at
	}

	buyNext, sellNext := buy.Clone(), sell.Clone()
	if err := buyNext.ApplyFill(trade.Quantity, at); err != nil {
		return fmt.Errorf("%w: buy order %d: %v", ErrStorageConflict, buy.ID, err)
	}
	if err := sellNext.ApplyFill(trade.Quantity, at); err != nil {
		return fmt.Errorf("%w: sell order %d: %v", ErrStorageConflict, sell.ID, err)
	}

	err := s.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for _, d := range deltas(trade, buy.BaseCurrency, buy.QuoteCurrency) {
			if _, err := tx.AdjustBalance(ctx, d.key.AccountID, d.key.Currency, d.amount); err != nil {
				if errors.Is(err, ledger.ErrNegativeBalance) {
					return fmt.Errorf("%w: %v", ErrInsufficientCounterBalance, err)
				}
				return fmt.Errorf("adjust balance %d/%s: %w", d.key.AccountID, d.key.Currency, err)
			}
		}
		if err := tx.UpdateOrder(ctx, buyNext); err != nil {
			return fmt.Errorf("update buy order: %w", err)
		}
		if err := tx.UpdateOrder(ctx, sellNext); err != nil {
			return fmt.Errorf("update sell order: %w", err)
		}
		if err := tx.InsertTrade(ctx, trade); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		return nil
	})
	if err != nil {
		trade.ID = 0
		s.logger.Error("settlement failed",
			zap.String("pair", trade.Pair),
			zap.Int64("buy_order_id", buy.ID),
			zap.Int64("sell_order_id", sell.ID),
			zap.String("quantity", trade.Quantity.String()),
			zap.String("price", trade.Price.String()),
			zap.Error(err))
		if errors.Is(err, ErrSettlementConflict) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorageConflict, err)
	}

	*buy = *buyNext
	*sell = *sellNext
	return nil
}
