package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

func TestDeltasSortedByAccountThenCurrency(t *testing.T) {
	tr := &models.Trade{
		BuyerAccountID:  9,
		SellerAccountID: 4,
		Quantity:        d("2"),
		Price:           d("100.5"),
	}
	ds := deltas(tr, "BTC", "USDT")
	require.Len(t, ds, 4)

	assert.Equal(t, models.BalanceKey{AccountID: 4, Currency: "BTC"}, ds[0].key)
	assert.Equal(t, "-2", ds[0].amount.String())
	assert.Equal(t, models.BalanceKey{AccountID: 4, Currency: "USDT"}, ds[1].key)
	assert.Equal(t, "201", ds[1].amount.String())
	assert.Equal(t, models.BalanceKey{AccountID: 9, Currency: "BTC"}, ds[2].key)
	assert.Equal(t, "2", ds[2].amount.String())
	assert.Equal(t, models.BalanceKey{AccountID: 9, Currency: "USDT"}, ds[3].key)
	assert.Equal(t, "-201", ds[3].amount.String())
}

func TestEngine_SettlementWritesOrdersAndTrade(t *testing.T) {
	h := newHarness(t)
	h.deposit(alice, "USDT", "50")
	h.deposit(bob, "BTC", "1")

	buy := limitOrder(alice, models.Buy, "50", "1", t0)
	sell := limitOrder(bob, models.Sell, "50", "1", t0)
	h.mustPlace(buy)
	h.mustPlace(sell)

	// The sell already crossed the resting buy during mustPlace.
	assert.Equal(t, models.Completed, h.stored(buy.ID).Status)
	assert.Equal(t, models.Completed, h.stored(sell.ID).Status)
	trades, err := h.store.RecentTrades(h.ctx, testPair, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, buy.ID, trades[0].BuyOrderID)
	assert.Equal(t, sell.ID, trades[0].SellOrderID)
}

func TestSettler_FailureLeavesOrdersUntouched(t *testing.T) {
	h := newHarness(t)
	settler := NewSettler(&faultLedger{Store: h.store}, zap.NewNop())

	buy := limitOrder(alice, models.Buy, "10", "1", t0)
	buy.ID = 1
	sell := limitOrder(bob, models.Sell, "10", "1", t0)
	sell.ID = 2
	tr := newTrade(buy, sell, d("1"), d("10"))

	err := settler.ApplyFill(h.ctx, tr, buy, sell)
	assert.ErrorIs(t, err, ErrStorageConflict)
	assert.ErrorIs(t, err, errInjected)
	assert.True(t, buy.FilledQuantity.IsZero())
	assert.True(t, sell.FilledQuantity.IsZero())
	assert.Equal(t, models.Pending, buy.Status)
	assert.Zero(t, tr.ID)
}

func TestSettler_RejectsOverfill(t *testing.T) {
	h := newHarness(t)
	settler := NewSettler(h.store, zap.NewNop())

	buy := limitOrder(alice, models.Buy, "10", "1", t0)
	buy.ID = 1
	sell := limitOrder(bob, models.Sell, "10", "5", t0)
	sell.ID = 2
	tr := newTrade(buy, sell, d("2"), d("10"))

	err := settler.ApplyFill(h.ctx, tr, buy, sell)
	assert.ErrorIs(t, err, ErrSettlementConflict)
	assert.True(t, buy.FilledQuantity.IsZero())
}

// A storage failure on the second fill keeps the first one committed and
// leaves the taker at its last good status.
func TestEngine_StorageFaultKeepsEarlierFills(t *testing.T) {
	h := newHarness(t)
	h.withLedger(&faultLedger{Store: h.store, allow: 1})
	h.deposit(bob, "BTC", "1")
	h.deposit(carol, "BTC", "1")
	h.deposit(alice, "USDT", "201")

	h.mustPlace(limitOrder(bob, models.Sell, "100", "1", t0))
	second := h.mustPlace(limitOrder(carol, models.Sell, "101", "1", t0.Add(time.Second))).Order

	res, err := h.place(marketOrder(alice, models.Buy, "2", t0.Add(2*time.Second)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageConflict)
	assert.ErrorIs(t, err, ErrSettlementConflict)
	assert.ErrorIs(t, err, errInjected)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.Partial, res.Order.Status)
	stored := h.stored(res.Order.ID)
	assert.Equal(t, models.Partial, stored.Status)
	assert.Equal(t, "1", stored.FilledQuantity.String())

	w, resting := h.book().Get(second.ID)
	require.True(t, resting)
	assert.True(t, w.FilledQuantity.IsZero())
	assert.Equal(t, models.Pending, h.stored(second.ID).Status)

	h.assertBalance(alice, "BTC", "1")
	h.assertBalance(alice, "USDT", "101")
	h.assertBalance(carol, "BTC", "1")
	h.assertBalance(carol, "USDT", "0")
}

// strandLimitBuy leaves alice's limit buy 2@101 partially filled in the
// ledger and out of the book: the fill against bob commits, the fill
// against carol hits a storage fault.
func strandLimitBuy(t *testing.T, h *harness) (fl *faultLedger, taker, carolAsk *models.Order) {
	t.Helper()
	fl = &faultLedger{Store: h.store, allow: 1}
	h.withLedger(fl)
	h.deposit(bob, "BTC", "1")
	h.deposit(carol, "BTC", "1")
	h.deposit(alice, "USDT", "202")

	h.mustPlace(limitOrder(bob, models.Sell, "100", "1", t0))
	carolAsk = h.mustPlace(limitOrder(carol, models.Sell, "101", "1", t0.Add(time.Second))).Order

	res, err := h.place(limitOrder(alice, models.Buy, "101", "2", t0.Add(2*time.Second)))
	require.ErrorIs(t, err, ErrStorageConflict)
	require.Len(t, res.Trades, 1)
	taker = res.Order

	stored := h.stored(taker.ID)
	require.Equal(t, models.Partial, stored.Status)
	require.Equal(t, "1", stored.FilledQuantity.String())
	_, inBook := h.book().Get(taker.ID)
	require.False(t, inBook)
	return fl, taker, carolAsk
}

func TestEngine_StrandedLimitTakerIsCancellable(t *testing.T) {
	h := newHarness(t)
	fl, taker, carolAsk := strandLimitBuy(t, h)
	assert.Equal(t, "101", h.committed(alice, "USDT").String())

	fl.allow = 1 << 30
	cancelled, err := h.engine.CancelOrder(h.ctx, alice, taker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Cancelled, cancelled.Status)
	assert.Equal(t, "1", cancelled.FilledQuantity.String())
	assert.Equal(t, models.Cancelled, h.stored(taker.ID).Status)
	assert.True(t, h.committed(alice, "USDT").IsZero())
	h.assertBalance(alice, "USDT", "102")
	h.assertBalance(alice, "BTC", "1")

	_, resting := h.book().Get(carolAsk.ID)
	assert.True(t, resting)

	_, err = h.engine.CancelOrder(h.ctx, alice, taker.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestEngine_RestoreMatchesStrandedLimitTaker(t *testing.T) {
	h := newHarness(t)
	_, taker, carolAsk := strandLimitBuy(t, h)

	var trades []*models.Trade
	restarted := New(h.store, []models.Pair{{Base: "BTC", Quote: "USDT"}}, zap.NewNop())
	restarted.SetTradeCallback(func(_ string, tr *models.Trade) { trades = append(trades, tr) })
	n, err := restarted.Restore(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, trades, 1)
	assert.Equal(t, taker.ID, trades[0].BuyOrderID)
	assert.Equal(t, carolAsk.ID, trades[0].SellOrderID)
	assert.Equal(t, "101", trades[0].Price.String())

	book := restarted.books[testPair].book
	_, hasBid := book.BestBid()
	_, hasAsk := book.BestAsk()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)
	assert.Equal(t, models.Completed, h.stored(taker.ID).Status)
	assert.Equal(t, models.Completed, h.stored(carolAsk.ID).Status)
	h.assertBalance(alice, "BTC", "2")
	h.assertBalance(alice, "USDT", "1")
	h.assertBalance(carol, "USDT", "101")
}

func TestEngine_InsufficientCounterBalanceAborts(t *testing.T) {
	h := newHarness(t)
	h.deposit(bob, "BTC", "1")
	h.deposit(alice, "USDT", "100")

	sell := h.mustPlace(limitOrder(bob, models.Sell, "100", "1", t0)).Order
	// Withdraw behind the engine's back.
	h.deposit(bob, "BTC", "-1")

	res, err := h.place(marketOrder(alice, models.Buy, "1", t0.Add(time.Second)))
	assert.ErrorIs(t, err, ErrInsufficientCounterBalance)
	assert.ErrorIs(t, err, ErrSettlementConflict)
	assert.Empty(t, res.Trades)
	assert.Equal(t, models.Pending, h.stored(res.Order.ID).Status)

	_, resting := h.book().Get(sell.ID)
	assert.True(t, resting)
	h.assertBalance(alice, "USDT", "100")
	h.assertBalance(alice, "BTC", "0")
	h.assertBalance(bob, "USDT", "0")

	trades, err := h.store.RecentTrades(h.ctx, testPair, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
