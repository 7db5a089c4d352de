package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPair = errors.New("engine: unknown pair")
	// ErrNotCancellable means the order is not resting: it was filled,
	// cancelled or expired before the cancel reached the book.
	ErrNotCancellable = errors.New("engine: order is not cancellable")
	ErrNotMatchable   = errors.New("engine: order must be pending to be matched")

	// ErrSettlementConflict aborts a match call. Fills committed before it
	// stay committed.
	ErrSettlementConflict = errors.New("engine: settlement conflict")
	// ErrInsufficientCounterBalance is a consistency fault: a party no
	// longer holds what its order was admitted against.
	ErrInsufficientCounterBalance = fmt.Errorf("%w: insufficient counter balance", ErrSettlementConflict)
	ErrStorageConflict            = fmt.Errorf("%w: storage conflict", ErrSettlementConflict)
)
