package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/store"
)

const testPair = "BTC-USDT"

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limitOrder(account int64, side models.Side, price, qty string, at time.Time) *models.Order {
	return &models.Order{
		AccountID:      account,
		Pair:           testPair,
		BaseCurrency:   "BTC",
		QuoteCurrency:  "USDT",
		Side:           side,
		Type:           models.Limit,
		LimitPrice:     decimal.NewNullDecimal(d(price)),
		Quantity:       d(qty),
		FilledQuantity: decimal.Zero,
		Status:         models.Pending,
		CreatedAt:      at,
	}
}

func marketOrder(account int64, side models.Side, qty string, at time.Time) *models.Order {
	o := limitOrder(account, side, "1", qty, at)
	o.Type = models.Market
	o.LimitPrice = decimal.NullDecimal{}
	return o
}

// harness wires an Engine to a bbolt ledger in a temp dir.
type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *store.BoltStore
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &harness{
		t:      t,
		ctx:    context.Background(),
		store:  st,
		engine: New(st, []models.Pair{{Base: "BTC", Quote: "USDT"}}, zap.NewNop()),
	}
}

// withLedger swaps the ledger the engine settles against.
func (h *harness) withLedger(l ledger.Store) *harness {
	h.engine = New(l, []models.Pair{{Base: "BTC", Quote: "USDT"}}, zap.NewNop())
	return h
}

func (h *harness) deposit(account int64, currency, amount string) {
	h.t.Helper()
	err := h.store.WithTransaction(h.ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.AdjustBalance(ctx, account, currency, d(amount))
		return err
	})
	require.NoError(h.t, err)
}

func (h *harness) balance(account int64, currency string) decimal.Decimal {
	h.t.Helper()
	var out decimal.Decimal
	err := h.store.WithTransaction(h.ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetBalance(ctx, account, currency)
		return err
	})
	require.NoError(h.t, err)
	return out
}

func (h *harness) committed(account int64, currency string) decimal.Decimal {
	h.t.Helper()
	var out decimal.Decimal
	err := h.store.WithTransaction(h.ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.CommittedBalance(ctx, account, currency)
		return err
	})
	require.NoError(h.t, err)
	return out
}

func (h *harness) assertBalance(account int64, currency, want string) {
	h.t.Helper()
	got := h.balance(account, currency)
	assert.Truef(h.t, got.Equal(d(want)), "account %d %s: want %s, got %s", account, currency, want, got)
}

// place persists o as a pending order and matches it.
func (h *harness) place(o *models.Order) (*MatchResult, error) {
	h.t.Helper()
	err := h.store.WithTransaction(h.ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertOrder(ctx, o)
	})
	require.NoError(h.t, err)
	return h.engine.Match(h.ctx, o)
}

func (h *harness) mustPlace(o *models.Order) *MatchResult {
	h.t.Helper()
	res, err := h.place(o)
	require.NoError(h.t, err)
	assertOrderInvariants(h.t, res.Order)
	return res
}

func (h *harness) stored(id int64) *models.Order {
	h.t.Helper()
	o, err := h.store.GetOrder(h.ctx, id)
	require.NoError(h.t, err)
	return o
}

func (h *harness) book() *OrderBook {
	return h.engine.books[testPair].book
}

func assertOrderInvariants(t *testing.T, o *models.Order) {
	t.Helper()
	assert.False(t, o.FilledQuantity.IsNegative(), "filled quantity is negative")
	assert.True(t, o.FilledQuantity.LessThanOrEqual(o.Quantity), "filled exceeds quantity")
	assert.Equal(t, o.FilledQuantity.Equal(o.Quantity), o.Status == models.Completed,
		"status %s does not agree with filled %s of %s", o.Status, o.FilledQuantity, o.Quantity)
}

var errInjected = errors.New("injected: connection reset by peer")

// faultLedger lets the first `allow` transactions through and fails the rest.
type faultLedger struct {
	ledger.Store
	allow int
	calls int
}

func (f *faultLedger) WithTransaction(ctx context.Context, fn ledger.TxFunc) error {
	f.calls++
	if f.calls > f.allow {
		return errInjected
	}
	return f.Store.WithTransaction(ctx, fn)
}
