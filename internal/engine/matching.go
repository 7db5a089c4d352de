package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// MatchResult is what one match call produced. Trades are in execution
// order; Makers holds the state of each resting order right after its fill.
type MatchResult struct {
	Order       *models.Order   `json:"order"`
	Trades      []*models.Trade `json:"trades"`
	Makers      []*models.Order `json:"-"`
	SelfSkipped int             `json:"-"`
}

// match runs the matching loop for order against book. The caller holds the
// pair lock. On a settlement error res still holds every committed fill.
func (e *Engine) match(ctx context.Context, book *pairBook, order *models.Order) (*MatchResult, error) {
	res := &MatchResult{Order: order}
	log := e.logger.With(zap.String("pair", order.Pair), zap.Int64("order_id", order.ID))

	remaining := order.Remaining()
	for cand := range book.book.Candidates(order.Side, order.LimitPrice) {
		if cand.AccountID == order.AccountID {
			res.SelfSkipped++
			log.Debug("self-trade candidate skipped", zap.Int64("resting_order_id", cand.ID))
			continue
		}

		qty := decimal.Min(remaining, cand.Remaining())
		trade := newTrade(order, cand.Order, qty, cand.LimitPrice.Decimal)

		buy, sell := order, cand.Order
		if order.Side == models.Sell {
			buy, sell = cand.Order, order
		}
		if err := e.settler.ApplyFill(ctx, trade, buy, sell); err != nil {
			return res, err
		}

		res.Trades = append(res.Trades, trade)
		res.Makers = append(res.Makers, cand.Order.Clone())
		book.lastPrice = decimal.NewNullDecimal(trade.Price)

		if !cand.Remaining().IsPositive() {
			book.book.Remove(cand.ID)
		}

		remaining = order.Remaining()
		if !remaining.IsPositive() {
			break
		}
	}

	if !remaining.IsPositive() {
		return res, nil
	}

	if order.Type == models.Limit {
		if _, err := book.book.Insert(order); err != nil {
			return res, fmt.Errorf("rest order %d: %w", order.ID, err)
		}
		return res, nil
	}

	// A market remainder never rests. With no fill at all the order expires;
	// a partial fill keeps status partial and receives nothing further.
	if order.FilledQuantity.IsZero() {
		expired := order.Clone()
		expired.Status = models.Expired
		expired.UpdatedAt = e.now()
		err := e.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.UpdateOrder(ctx, expired)
		})
		if err != nil {
			return res, fmt.Errorf("%w: expire order %d: %w", ErrStorageConflict, order.ID, err)
		}
		*order = *expired
	}
	log.Info("market order remainder dropped",
		zap.String("unfilled", remaining.String()),
		zap.String("status", string(order.Status)))
	return res, nil
}

func newTrade(taker, maker *models.Order, qty, price decimal.Decimal) *models.Trade {
	t := &models.Trade{
		Pair:      taker.Pair,
		Price:     price,
		Quantity:  qty,
		TakerSide: taker.Side,
	}
	if taker.Side == models.Buy {
		t.BuyOrderID, t.BuyerAccountID = taker.ID, taker.AccountID
		t.SellOrderID, t.SellerAccountID = maker.ID, maker.AccountID
	} else {
		t.BuyOrderID, t.BuyerAccountID = maker.ID, maker.AccountID
		t.SellOrderID, t.SellerAccountID = taker.ID, taker.AccountID
	}
	return t
}
