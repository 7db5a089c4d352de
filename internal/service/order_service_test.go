package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/store"
)

const (
	alice int64 = 1
	bob   int64 = 2
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func newTestService(t *testing.T, opts ...Option) (*OrderService, *store.BoltStore) {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	markets := models.DefaultMarkets()
	eng := engine.New(st, markets.Pairs(), zap.NewNop())
	return NewOrderService(st, eng, markets, zap.NewNop(), opts...), st
}

func mustDeposit(t *testing.T, s *OrderService, account int64, currency, amount string) {
	t.Helper()
	_, err := s.Deposit(context.Background(), account, currency, d(amount))
	require.NoError(t, err)
}

func limit(account int64, side models.Side, p, qty string) NewOrderRequest {
	return NewOrderRequest{
		AccountID: account,
		Pair:      "BTC-USDT",
		Side:      side,
		Type:      models.Limit,
		Price:     price(p),
		Quantity:  d(qty),
	}
}

func TestSubmitOrder_RestsAndMatches(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustDeposit(t, s, alice, "BTC", "2")
	mustDeposit(t, s, bob, "USDT", "100000")

	sell, err := s.SubmitOrder(ctx, limit(alice, models.Sell, "30000", "1"))
	require.NoError(t, err)
	assert.Empty(t, sell.Trades)
	assert.Equal(t, models.Pending, sell.Order.Status)
	assert.Positive(t, sell.Order.ID)

	buy, err := s.SubmitOrder(ctx, limit(bob, models.Buy, "31000", "1"))
	require.NoError(t, err)
	require.Len(t, buy.Trades, 1)
	assert.True(t, buy.Trades[0].Price.Equal(d("30000")), "maker price applies")
	assert.Equal(t, models.Completed, buy.Order.Status)

	stored, err := s.GetOrder(ctx, sell.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Completed, stored.Status)

	snap, err := s.Snapshot("btc/usdt", 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestSubmitOrder_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustDeposit(t, s, bob, "USDT", "1000")

	_, err := s.SubmitOrder(ctx, limit(bob, models.Buy, "600", "1"))
	require.NoError(t, err)

	// The first bid holds 600, leaving 400 for the second.
	_, err = s.SubmitOrder(ctx, limit(bob, models.Buy, "500", "1"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.Equal(t, "USDT", ibe.Currency)
	assert.True(t, ibe.Required.Equal(d("500")))
	assert.True(t, ibe.Available.Equal(d("400")))

	orders, err := s.ListOrders(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, orders, 1, "rejected order is not persisted")
}

func TestSubmitOrder_SellNeedsBase(t *testing.T) {
	s, _ := newTestService(t)
	mustDeposit(t, s, alice, "BTC", "0.5")

	_, err := s.SubmitOrder(context.Background(), limit(alice, models.Sell, "30000", "1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSubmitOrder_MarketBuyPricedAgainstBook(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustDeposit(t, s, alice, "BTC", "2")
	mustDeposit(t, s, bob, "USDT", "250")

	_, err := s.SubmitOrder(ctx, limit(alice, models.Sell, "100", "1"))
	require.NoError(t, err)
	_, err = s.SubmitOrder(ctx, limit(alice, models.Sell, "200", "1"))
	require.NoError(t, err)

	market := NewOrderRequest{AccountID: bob, Pair: "BTC-USDT", Side: models.Buy, Type: models.Market, Quantity: d("2")}
	_, err = s.SubmitOrder(ctx, market)
	require.ErrorIs(t, err, ErrInsufficientBalance, "two units cost 300")

	market.Quantity = d("1.5")
	res, err := s.SubmitOrder(ctx, market)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, models.Completed, res.Order.Status)

	balances, err := s.Balances(ctx, bob)
	require.NoError(t, err)
	byCurrency := map[string]*models.BalanceView{}
	for _, b := range balances {
		byCurrency[b.Currency] = b
	}
	assert.True(t, byCurrency["BTC"].Amount.Equal(d("1.5")))
	assert.True(t, byCurrency["USDT"].Amount.Equal(d("50")))
}

func TestSubmitOrder_MarketOrderWithoutLiquidityExpires(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustDeposit(t, s, alice, "BTC", "1")

	res, err := s.SubmitOrder(ctx, NewOrderRequest{
		AccountID: alice, Pair: "BTC-USDT", Side: models.Sell, Type: models.Market, Quantity: d("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Expired, res.Order.Status)

	views, err := s.Balances(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Committed.IsZero(), "expired order holds nothing")
}

func TestSubmitOrder_Validation(t *testing.T) {
	s, _ := newTestService(t)

	tests := []struct {
		name  string
		req   NewOrderRequest
		field string
	}{
		{"unlisted pair", NewOrderRequest{AccountID: alice, Pair: "DOGE-USDT", Side: models.Buy, Type: models.Limit, Price: price("1"), Quantity: d("1")}, "pair"},
		{"malformed pair", NewOrderRequest{AccountID: alice, Pair: "BTCUSDT", Side: models.Buy, Type: models.Limit, Price: price("1"), Quantity: d("1")}, "pair"},
		{"zero quantity", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: models.Buy, Type: models.Limit, Price: price("1"), Quantity: d("0")}, "quantity"},
		{"limit without price", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: models.Buy, Type: models.Limit, Quantity: d("1")}, "price"},
		{"market with price", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: models.Buy, Type: models.Market, Price: price("1"), Quantity: d("1")}, "price"},
		{"quantity too precise", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: models.Buy, Type: models.Limit, Price: price("1"), Quantity: d("0.000000001")}, "quantity"},
		{"price too precise", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: models.Buy, Type: models.Limit, Price: price("1.0000001"), Quantity: d("1")}, "price"},
		{"bad side", NewOrderRequest{AccountID: alice, Pair: "BTC-USDT", Side: "hold", Type: models.Limit, Price: price("1"), Quantity: d("1")}, "side"},
		{"no account", NewOrderRequest{Pair: "BTC-USDT", Side: models.Buy, Type: models.Limit, Price: price("1"), Quantity: d("1")}, "account_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitOrder(context.Background(), tt.req)
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := s.SubmitOrder(context.Background(), tests[0].req)
	assert.ErrorIs(t, err, ErrUnknownPair)
}

func TestCancelOrder_ReleasesCommitment(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustDeposit(t, s, bob, "USDT", "1000")

	res, err := s.SubmitOrder(ctx, limit(bob, models.Buy, "900", "1"))
	require.NoError(t, err)

	views, err := s.Balances(ctx, bob)
	require.NoError(t, err)
	assert.True(t, views[0].Committed.Equal(d("900")))
	assert.True(t, views[0].Available.Equal(d("100")))

	_, err = s.CancelOrder(ctx, alice, res.Order.ID)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound, "only the owner may cancel")

	cancelled, err := s.CancelOrder(ctx, bob, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Cancelled, cancelled.Status)

	_, err = s.CancelOrder(ctx, bob, res.Order.ID)
	assert.ErrorIs(t, err, engine.ErrNotCancellable)

	views, err = s.Balances(ctx, bob)
	require.NoError(t, err)
	assert.True(t, views[0].Available.Equal(d("1000")))
}

func TestDepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	b, err := s.Deposit(ctx, alice, "usdt", d("150.5"))
	require.NoError(t, err)
	assert.Equal(t, "USDT", b.Currency)
	assert.True(t, b.Amount.Equal(d("150.5")))

	_, err = s.Deposit(ctx, alice, "XYZ", d("1"))
	assert.ErrorIs(t, err, ErrUnknownCurrency)
	_, err = s.Deposit(ctx, alice, "USDT", d("-1"))
	assert.True(t, models.IsValidationError(err))
	_, err = s.Deposit(ctx, alice, "USD", d("0.001"))
	assert.True(t, models.IsValidationError(err), "USD has two decimal places")

	_, err = s.SubmitOrder(ctx, limit(alice, models.Buy, "100", "1"))
	require.NoError(t, err)

	_, err = s.Withdraw(ctx, alice, "USDT", d("60"))
	assert.ErrorIs(t, err, ErrInsufficientBalance, "100 is held by the bid")

	b, err = s.Withdraw(ctx, alice, "USDT", d("50.5"))
	require.NoError(t, err)
	assert.True(t, b.Amount.Equal(d("100")))
}

type stubTrades struct {
	trades []*models.Trade
	err    error
}

func (s stubTrades) RecentTrades(context.Context, string, int) ([]*models.Trade, error) {
	return s.trades, s.err
}

func TestRecentTrades_PrefersReader(t *testing.T) {
	ctx := context.Background()
	cached := []*models.Trade{{ID: 99, Pair: "BTC-USDT"}}
	m := metrics.New()
	s, _ := newTestService(t, WithTradeReader(stubTrades{trades: cached}), WithMetrics(m))

	got, err := s.RecentTrades(ctx, "BTC-USDT", 10)
	require.NoError(t, err)
	assert.Equal(t, cached, got)

	_, err = s.RecentTrades(ctx, "XRP-USDT", 10)
	assert.ErrorIs(t, err, ErrUnknownPair)
}

func TestRecentTrades_FallsBackToLedger(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, WithTradeReader(stubTrades{err: errors.New("redis down")}))
	mustDeposit(t, s, alice, "BTC", "1")
	mustDeposit(t, s, bob, "USDT", "100")

	_, err := s.SubmitOrder(ctx, limit(alice, models.Sell, "100", "1"))
	require.NoError(t, err)
	_, err = s.SubmitOrder(ctx, limit(bob, models.Buy, "100", "1"))
	require.NoError(t, err)

	got, err := s.RecentTrades(ctx, "BTC-USDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alice, got[0].SellerAccountID)
}
