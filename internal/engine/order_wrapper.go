package engine

import (
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

// OrderWrapper is a resting order as held by the book. seq is assigned when
// the order enters the book and breaks ties between equal price and
// created_at, so ordering inside the tree is total.
type OrderWrapper struct {
	*models.Order
	seq uint64
}

func NewOrderWrapper(o *models.Order, seq uint64) *OrderWrapper {
	return &OrderWrapper{Order: o, seq: seq}
}

func (w *OrderWrapper) Seq() uint64 {
	return w.seq
}

// bidLess orders bids best first: higher price, then earlier created_at.
func bidLess(a, b *OrderWrapper) bool {
	if c := a.LimitPrice.Decimal.Cmp(b.LimitPrice.Decimal); c != 0 {
		return c > 0
	}
	return timeThenSeq(a, b)
}

// askLess orders asks best first: lower price, then earlier created_at.
func askLess(a, b *OrderWrapper) bool {
	if c := a.LimitPrice.Decimal.Cmp(b.LimitPrice.Decimal); c != 0 {
		return c < 0
	}
	return timeThenSeq(a, b)
}

func timeThenSeq(a, b *OrderWrapper) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.seq < b.seq
}
