package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// Balances returns every balance of the account with the part held by its
// open orders.
func (s *OrderService) Balances(ctx context.Context, accountID int64) ([]*models.BalanceView, error) {
	if accountID <= 0 {
		return nil, &models.ValidationError{Field: "account_id", Message: "must be positive"}
	}
	balances, err := s.ledger.Balances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var views []*models.BalanceView
	err = s.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		views = make([]*models.BalanceView, 0, len(balances))
		for _, b := range balances {
			committed, err := tx.CommittedBalance(ctx, accountID, b.Currency)
			if err != nil {
				return err
			}
			views = append(views, &models.BalanceView{
				Balance:   *b,
				Committed: committed,
				Available: b.Amount.Sub(committed),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Currency < views[j].Currency })
	return views, nil
}

// Deposit credits a listed currency to an account. It stands in for an
// on-chain deposit.
func (s *OrderService) Deposit(ctx context.Context, accountID int64, currency string, amount decimal.Decimal) (*models.Balance, error) {
	cur, err := s.checkTransfer(accountID, currency, amount)
	if err != nil {
		return nil, err
	}

	var next decimal.Decimal
	err = s.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		next, err = tx.AdjustBalance(ctx, accountID, cur.Code, amount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("deposit %s: %w", cur.Code, err)
	}

	s.logger.Info("deposit credited",
		zap.Int64("account_id", accountID),
		zap.String("currency", cur.Code),
		zap.String("amount", amount.String()))
	return &models.Balance{AccountID: accountID, Currency: cur.Code, Amount: next, UpdatedAt: s.now()}, nil
}

// Withdraw debits an account. Funds held by open orders cannot be withdrawn.
func (s *OrderService) Withdraw(ctx context.Context, accountID int64, currency string, amount decimal.Decimal) (*models.Balance, error) {
	cur, err := s.checkTransfer(accountID, currency, amount)
	if err != nil {
		return nil, err
	}

	var next decimal.Decimal
	err = s.ledger.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		balance, err := tx.GetBalance(ctx, accountID, cur.Code)
		if err != nil {
			return err
		}
		committed, err := tx.CommittedBalance(ctx, accountID, cur.Code)
		if err != nil {
			return err
		}
		if available := balance.Sub(committed); available.LessThan(amount) {
			return &InsufficientBalanceError{
				AccountID: accountID,
				Currency:  cur.Code,
				Required:  amount,
				Available: available,
			}
		}
		next, err = tx.AdjustBalance(ctx, accountID, cur.Code, amount.Neg())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal debited",
		zap.Int64("account_id", accountID),
		zap.String("currency", cur.Code),
		zap.String("amount", amount.String()))
	return &models.Balance{AccountID: accountID, Currency: cur.Code, Amount: next, UpdatedAt: s.now()}, nil
}

func (s *OrderService) checkTransfer(accountID int64, currency string, amount decimal.Decimal) (*models.Currency, error) {
	if accountID <= 0 {
		return nil, &models.ValidationError{Field: "account_id", Message: "must be positive"}
	}
	cur, ok := s.markets.Currency(strings.ToUpper(strings.TrimSpace(currency)))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	if !amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !cur.Fits(amount) {
		return nil, &models.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("allows at most %d decimal places", cur.Precision),
		}
	}
	return cur, nil
}
