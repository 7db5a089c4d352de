package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
)

// pairBook is one pair's book plus the lock that serializes every match and
// cancel on that pair.
type pairBook struct {
	mu        sync.RWMutex
	book      *OrderBook
	lastPrice decimal.NullDecimal
}

// Engine owns one order book per listed pair.
//
// THREAD SAFETY:
//   - Match, Submit and CancelOrder hold the pair lock for their whole run, so
//     a second call on the same pair never sees a half-applied match
//   - Different pairs match concurrently
//   - Callbacks run after the pair lock is released
type Engine struct {
	ledger  ledger.Store
	settler *Settler
	logger  *zap.Logger
	now     func() time.Time

	books map[string]*pairBook

	cbMu    sync.RWMutex
	onTrade func(pair string, trade *models.Trade)
	onOrder func(pair string, order *models.Order)
}

// AdmitFunc persists a new order after checking the owner can pay for it.
// marketCost is the quote needed to fill a market buy against the book as
// it stands; it is zero for every other order.
type AdmitFunc func(ctx context.Context, order *models.Order, marketCost decimal.Decimal) error

func New(store ledger.Store, pairs []models.Pair, logger *zap.Logger) *Engine {
	e := &Engine{
		ledger:  store,
		settler: NewSettler(store, logger),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		books:   make(map[string]*pairBook, len(pairs)),
	}
	for _, p := range pairs {
		e.books[p.Symbol()] = &pairBook{book: NewOrderBook(p.Symbol())}
	}
	return e
}

func (e *Engine) pair(symbol string) (*pairBook, error) {
	pb, ok := e.books[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, symbol)
	}
	return pb, nil
}

// Match matches an order that is already persisted with status pending.
// The returned order reflects every fill; a limit remainder is left resting.
func (e *Engine) Match(ctx context.Context, order *models.Order) (*MatchResult, error) {
	if order.ID <= 0 || order.Status != models.Pending {
		return nil, ErrNotMatchable
	}
	pb, err := e.pair(order.Pair)
	if err != nil {
		return nil, err
	}

	pb.mu.Lock()
	// A cancel may have reached the ledger between insert and lock.
	stored, err := e.ledger.GetOrder(ctx, order.ID)
	if err == nil && stored.Status != models.Pending {
		err = ErrNotMatchable
	}
	if err != nil {
		pb.mu.Unlock()
		return nil, err
	}
	res, err := e.match(context.WithoutCancel(ctx), pb, order)
	res.Order = order.Clone()
	pb.mu.Unlock()

	e.notify(res)
	return res, err
}

// Submit admits and matches a new order under one hold of the pair lock, so
// the book a market buy was priced against is the book it matches against.
func (e *Engine) Submit(ctx context.Context, order *models.Order, admit AdmitFunc) (*MatchResult, error) {
	pb, err := e.pair(order.Pair)
	if err != nil {
		return nil, err
	}

	pb.mu.Lock()
	marketCost := decimal.Zero
	if order.Type == models.Market && order.Side == models.Buy {
		marketCost, _ = pb.book.CostToBuy(order.AccountID, order.Remaining())
	}
	if err := admit(ctx, order, marketCost); err != nil {
		pb.mu.Unlock()
		return nil, err
	}
	res, err := e.match(context.WithoutCancel(ctx), pb, order)
	res.Order = order.Clone()
	pb.mu.Unlock()

	e.notify(res)
	return res, err
}

// CancelOrder cancels an open order. accountID 0 skips the ownership check.
// An order that is open in the ledger but absent from the book, left behind
// by a settlement fault, is cancelled in the ledger alone. Anything else
// that already left the book yields ErrNotCancellable.
func (e *Engine) CancelOrder(ctx context.Context, accountID, orderID int64) (*models.Order, error) {
	stored, err := e.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if accountID != 0 && stored.AccountID != accountID {
		return nil, fmt.Errorf("%w: %d", ledger.ErrOrderNotFound, orderID)
	}
	pb, err := e.pair(stored.Pair)
	if err != nil {
		return nil, err
	}

	pb.mu.Lock()
	w, resting := pb.book.Get(orderID)
	current := stored
	if resting {
		current = w.Order
	} else {
		// Re-read under the lock; a match may have moved it meanwhile.
		if current, err = e.ledger.GetOrder(ctx, orderID); err != nil {
			pb.mu.Unlock()
			return nil, err
		}
		if !stranded(current) {
			pb.mu.Unlock()
			return nil, fmt.Errorf("%w: order %d is %s", ErrNotCancellable, orderID, current.Status)
		}
	}

	cancelled := current.Clone()
	cancelled.Status = models.Cancelled
	cancelled.UpdatedAt = e.now()
	err = e.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.UpdateOrder(ctx, cancelled)
	})
	if err != nil {
		pb.mu.Unlock()
		return nil, fmt.Errorf("%w: cancel order %d: %w", ErrStorageConflict, orderID, err)
	}
	if resting {
		pb.book.Remove(orderID)
		*w.Order = *cancelled
	}
	out := cancelled.Clone()
	pb.mu.Unlock()

	e.logger.Info("order cancelled",
		zap.String("pair", out.Pair),
		zap.Int64("order_id", out.ID),
		zap.Bool("stranded", !resting),
		zap.String("unfilled", out.Remaining().String()))
	e.emitOrder(out)
	return out, nil
}

// stranded reports whether an order outside the book still holds funds in
// the ledger. The caller holds the pair lock, so no match owns it.
func stranded(o *models.Order) bool {
	if !o.Status.IsOpen() {
		return false
	}
	return o.Type == models.Limit || o.Status == models.Pending
}

// BookSnapshot is the aggregated view of a book for display.
type BookSnapshot struct {
	Pair      string           `json:"pair"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// Snapshot returns up to depth price levels per side.
func (e *Engine) Snapshot(pair string, depth int) (*BookSnapshot, error) {
	pb, err := e.pair(pair)
	if err != nil {
		return nil, err
	}
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	bids, asks := pb.book.Depth(depth)
	return &BookSnapshot{Pair: pair, Bids: bids, Asks: asks, Timestamp: e.now()}, nil
}

// Restore replays open limit orders from the ledger through the matcher in
// (createdAt, id) order, so an order left out of the book by a settlement
// fault trades against what rested before it instead of crossing it. It
// must run before the engine takes traffic. The count is of orders
// replayed.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	orders, err := e.ledger.OpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open orders: %w", err)
	}
	restored, trades := 0, 0
	for _, o := range orders {
		pb, err := e.pair(o.Pair)
		if err != nil {
			e.logger.Warn("skipping open order of unlisted pair",
				zap.Int64("order_id", o.ID), zap.String("pair", o.Pair))
			continue
		}
		pb.mu.Lock()
		res, err := e.match(ctx, pb, o)
		res.Order = o.Clone()
		pb.mu.Unlock()

		e.notify(res)
		if err != nil {
			return restored, fmt.Errorf("restore order %d: %w", o.ID, err)
		}
		restored++
		trades += len(res.Trades)
	}
	if trades > 0 {
		e.logger.Warn("crossing orders matched during restore", zap.Int("trades", trades))
	}
	return restored, nil
}

// FetchQuotes reads best prices and last trade price of every book.
func (e *Engine) FetchQuotes(_ context.Context) ([]pricing.Quote, error) {
	now := e.now()
	quotes := make([]pricing.Quote, 0, len(e.books))
	for _, symbol := range e.Pairs() {
		pb := e.books[symbol]
		pb.mu.RLock()
		q := pricing.Quote{Pair: symbol, LastPrice: pb.lastPrice, UpdatedAt: now}
		if bid, ok := pb.book.BestBid(); ok {
			q.BestBid = decimal.NewNullDecimal(bid.Price)
		}
		if ask, ok := pb.book.BestAsk(); ok {
			q.BestAsk = decimal.NewNullDecimal(ask.Price)
		}
		pb.mu.RUnlock()
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Pairs returns the symbols of all books, sorted.
func (e *Engine) Pairs() []string {
	pairs := make([]string, 0, len(e.books))
	for symbol := range e.books {
		pairs = append(pairs, symbol)
	}
	sort.Strings(pairs)
	return pairs
}

// RestingCounts returns the number of resting orders per pair.
func (e *Engine) RestingCounts() map[string]int {
	counts := make(map[string]int, len(e.books))
	for symbol, pb := range e.books {
		pb.mu.RLock()
		counts[symbol] = pb.book.Len()
		pb.mu.RUnlock()
	}
	return counts
}

// SetTradeCallback sets the callback invoked for every committed trade.
func (e *Engine) SetTradeCallback(cb func(pair string, trade *models.Trade)) *Engine {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onTrade = cb
	return e
}

// SetOrderCallback sets the callback invoked whenever an order changes
// state: the taker after its match, every maker it filled, and cancels.
func (e *Engine) SetOrderCallback(cb func(pair string, order *models.Order)) *Engine {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onOrder = cb
	return e
}

func (e *Engine) notify(res *MatchResult) {
	if res == nil {
		return
	}
	e.cbMu.RLock()
	onTrade := e.onTrade
	e.cbMu.RUnlock()

	if onTrade != nil {
		for _, t := range res.Trades {
			onTrade(t.Pair, t)
		}
	}
	for _, m := range res.Makers {
		e.emitOrder(m)
	}
	e.emitOrder(res.Order)
}

func (e *Engine) emitOrder(o *models.Order) {
	e.cbMu.RLock()
	onOrder := e.onOrder
	e.cbMu.RUnlock()
	if onOrder != nil {
		onOrder(o.Pair, o)
	}
}
