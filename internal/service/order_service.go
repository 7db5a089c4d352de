// Package service is the only write entry point of the exchange: it
// validates requests, checks balances at admission and hands orders to the
// matching engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

var (
	ErrUnknownPair     = &models.ValidationError{Field: "pair", Message: "is not listed"}
	ErrUnknownCurrency = &models.ValidationError{Field: "currency", Message: "is not listed"}

	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InsufficientBalanceError reports what an admission or withdrawal lacked.
type InsufficientBalanceError struct {
	AccountID int64
	Currency  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s",
		e.Currency, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NewOrderRequest is a client order before admission.
type NewOrderRequest struct {
	AccountID int64
	Pair      string
	Side      models.Side
	Type      models.OrderType
	Price     decimal.NullDecimal
	Quantity  decimal.Decimal
}

// TradeReader serves recent trades from somewhere faster than the ledger.
type TradeReader interface {
	RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error)
}

type OrderService struct {
	ledger  ledger.Store
	engine  *engine.Engine
	markets *models.Markets
	logger  *zap.Logger
	metrics *metrics.Metrics
	trades  TradeReader
	now     func() time.Time
}

type Option func(*OrderService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func WithTradeReader(r TradeReader) Option {
	return func(s *OrderService) { s.trades = r }
}

func NewOrderService(store ledger.Store, eng *engine.Engine, markets *models.Markets, logger *zap.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		ledger:  store,
		engine:  eng,
		markets: markets,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) Markets() *models.Markets {
	return s.markets
}

// SubmitOrder admits an order and matches it. The returned order reflects
// every fill made before the call returned. On a settlement error the
// result still lists the trades that were committed.
func (s *OrderService) SubmitOrder(ctx context.Context, req NewOrderRequest) (*engine.MatchResult, error) {
	start := time.Now()
	order, err := s.buildOrder(req)
	if err != nil {
		s.metrics.RecordRejected("validation")
		return nil, err
	}

	res, err := s.engine.Submit(ctx, order, s.admit)
	if res != nil {
		s.metrics.RecordMatch(order.Pair, time.Since(start), res.Trades)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientBalance):
			s.metrics.RecordRejected("insufficient_balance")
		case errors.Is(err, engine.ErrSettlementConflict):
			s.metrics.RecordSettlementFailure(order.Pair)
			s.logger.Error("match aborted",
				zap.Int64("order_id", order.ID),
				zap.String("pair", order.Pair),
				zap.Int("committed_trades", len(res.Trades)),
				zap.Error(err))
		}
		return res, err
	}

	s.metrics.RecordOrderPlaced(order.Pair, order.Side, order.Type)
	s.logger.Info("order matched",
		zap.Int64("order_id", res.Order.ID),
		zap.Int64("account_id", res.Order.AccountID),
		zap.String("pair", res.Order.Pair),
		zap.String("status", string(res.Order.Status)),
		zap.Int("trades", len(res.Trades)))
	return res, nil
}

func (s *OrderService) buildOrder(req NewOrderRequest) (*models.Order, error) {
	pair, err := s.lookupPair(req.Pair)
	if err != nil {
		return nil, err
	}
	base, _ := s.markets.Currency(pair.Base)
	quote, _ := s.markets.Currency(pair.Quote)

	now := s.now()
	order := &models.Order{
		AccountID:      req.AccountID,
		Pair:           pair.Symbol(),
		BaseCurrency:   pair.Base,
		QuoteCurrency:  pair.Quote,
		Side:           req.Side,
		Type:           req.Type,
		LimitPrice:     req.Price,
		Quantity:       req.Quantity,
		FilledQuantity: decimal.Zero,
		Status:         models.Pending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if !base.Fits(order.Quantity) {
		return nil, &models.ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("allows at most %d decimal places", base.Precision),
		}
	}
	if order.LimitPrice.Valid && !quote.Fits(order.LimitPrice.Decimal) {
		return nil, &models.ValidationError{
			Field:   "price",
			Message: fmt.Sprintf("allows at most %d decimal places", quote.Precision),
		}
	}
	return order, nil
}

func (s *OrderService) lookupPair(symbol string) (models.Pair, error) {
	parsed, err := models.ParsePair(symbol)
	if err != nil {
		return models.Pair{}, err
	}
	pair, ok := s.markets.Pair(parsed.Symbol())
	if !ok {
		return models.Pair{}, fmt.Errorf("%w: %s", ErrUnknownPair, parsed.Symbol())
	}
	return pair, nil
}

// admit checks the account can cover the order on top of what its open
// orders already hold, then persists it. Both happen in one transaction.
func (s *OrderService) admit(ctx context.Context, order *models.Order, marketCost decimal.Decimal) error {
	currency, required := requirement(order, marketCost)
	return s.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		balance, err := tx.GetBalance(ctx, order.AccountID, currency)
		if err != nil {
			return err
		}
		committed, err := tx.CommittedBalance(ctx, order.AccountID, currency)
		if err != nil {
			return err
		}
		available := balance.Sub(committed)
		if available.LessThan(required) {
			return &InsufficientBalanceError{
				AccountID: order.AccountID,
				Currency:  currency,
				Required:  required,
				Available: available,
			}
		}
		return tx.InsertOrder(ctx, order)
	})
}

// requirement is the currency and amount an order must be covered by.
func requirement(o *models.Order, marketCost decimal.Decimal) (string, decimal.Decimal) {
	switch {
	case o.Side == models.Sell:
		return o.BaseCurrency, o.Quantity
	case o.Type == models.Limit:
		return o.QuoteCurrency, o.Quantity.Mul(o.LimitPrice.Decimal)
	default:
		return o.QuoteCurrency, marketCost
	}
}

// CancelOrder cancels a resting order owned by accountID.
func (s *OrderService) CancelOrder(ctx context.Context, accountID, orderID int64) (*models.Order, error) {
	o, err := s.engine.CancelOrder(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOrderCancelled(o.Pair)
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.ledger.GetOrder(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, accountID int64) ([]*models.Order, error) {
	return s.ledger.ListOrders(ctx, accountID)
}

// Snapshot returns the aggregated book of a listed pair.
func (s *OrderService) Snapshot(pair string, depth int) (*engine.BookSnapshot, error) {
	p, err := s.lookupPair(pair)
	if err != nil {
		return nil, err
	}
	return s.engine.Snapshot(p.Symbol(), depth)
}

// RecentTrades reads from the trade reader when it has data, otherwise from
// the ledger.
func (s *OrderService) RecentTrades(ctx context.Context, pair string, limit int) ([]*models.Trade, error) {
	p, err := s.lookupPair(pair)
	if err != nil {
		return nil, err
	}
	if s.trades != nil {
		trades, err := s.trades.RecentTrades(ctx, p.Symbol(), limit)
		if err == nil && len(trades) > 0 {
			s.metrics.RecordCache(true)
			return trades, nil
		}
		if err != nil {
			s.logger.Warn("trade cache read failed", zap.String("pair", p.Symbol()), zap.Error(err))
		}
		s.metrics.RecordCache(false)
	}
	return s.ledger.RecentTrades(ctx, p.Symbol(), limit)
}
