package engine

import (
	"errors"
	"iter"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

var (
	ErrNotRestable    = errors.New("engine: only pending or partial limit orders can rest in the book")
	ErrDuplicateOrder = errors.New("engine: order already in book")
)

const treeDegree = 32

// OrderBook is the resting-order index of one pair. Bids and asks are kept
// in B-trees ordered by price-time priority, so inserts and removals never
// re-sort the side.
//
// OrderBook is not safe for concurrent use; Engine guards each book with
// the pair lock.
type OrderBook struct {
	pair       string
	bids       *btree.BTreeG[*OrderWrapper]
	asks       *btree.BTreeG[*OrderWrapper]
	ordersByID map[int64]*OrderWrapper
	nextSeq    uint64
}

func NewOrderBook(pair string) *OrderBook {
	return &OrderBook{
		pair:       pair,
		bids:       btree.NewG(treeDegree, bidLess),
		asks:       btree.NewG(treeDegree, askLess),
		ordersByID: make(map[int64]*OrderWrapper),
	}
}

func (ob *OrderBook) Pair() string {
	return ob.pair
}

func (ob *OrderBook) side(s models.Side) *btree.BTreeG[*OrderWrapper] {
	if s == models.Buy {
		return ob.bids
	}
	return ob.asks
}

// Insert rests an order. The book keeps the pointer: fills applied to the
// order later are visible through the index.
func (ob *OrderBook) Insert(o *models.Order) (*OrderWrapper, error) {
	if o.Type != models.Limit || !o.LimitPrice.Valid || !o.Status.IsOpen() {
		return nil, ErrNotRestable
	}
	if _, exists := ob.ordersByID[o.ID]; exists {
		return nil, ErrDuplicateOrder
	}
	ob.nextSeq++
	w := NewOrderWrapper(o, ob.nextSeq)
	ob.side(o.Side).ReplaceOrInsert(w)
	ob.ordersByID[o.ID] = w
	return w, nil
}

// Remove drops an order from the index. It reports whether it was there.
func (ob *OrderBook) Remove(orderID int64) bool {
	w, ok := ob.ordersByID[orderID]
	if !ok {
		return false
	}
	ob.side(w.Side).Delete(w)
	delete(ob.ordersByID, orderID)
	return true
}

func (ob *OrderBook) Get(orderID int64) (*OrderWrapper, bool) {
	w, ok := ob.ordersByID[orderID]
	return w, ok
}

func (ob *OrderBook) Len() int {
	return len(ob.ordersByID)
}

// Candidates yields resting orders on the side opposite to incoming in
// priority order. With a limit price the sequence ends at the first order
// whose price does not cross it; without one every resting order is
// eligible. Orders already yielded may be removed while the sequence is
// being consumed.
func (ob *OrderBook) Candidates(incoming models.Side, limit decimal.NullDecimal) iter.Seq[*OrderWrapper] {
	tree := ob.side(incoming.Opposite())
	return func(yield func(*OrderWrapper) bool) {
		var last *OrderWrapper
		for {
			next, ok := after(tree, last)
			if !ok {
				return
			}
			if limit.Valid && !crosses(incoming, limit.Decimal, next.LimitPrice.Decimal) {
				return
			}
			if !yield(next) {
				return
			}
			last = next
		}
	}
}

// after returns the first item ordered after last, or the minimum when last
// is nil. last does not have to be in the tree any more.
func after(tree *btree.BTreeG[*OrderWrapper], last *OrderWrapper) (*OrderWrapper, bool) {
	if last == nil {
		return tree.Min()
	}
	var found *OrderWrapper
	tree.AscendGreaterOrEqual(last, func(w *OrderWrapper) bool {
		if w == last {
			return true
		}
		found = w
		return false
	})
	return found, found != nil
}

// crosses reports whether a resting price is acceptable to an incoming
// limit order.
func crosses(incoming models.Side, limit, resting decimal.Decimal) bool {
	if incoming == models.Buy {
		return resting.LessThanOrEqual(limit)
	}
	return resting.GreaterThanOrEqual(limit)
}

// OrderBookLevel is the aggregate of all resting orders at one price.
type OrderBookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Count  int             `json:"count"`
}

// Depth aggregates the best levels of each side. levels <= 0 means all.
func (ob *OrderBook) Depth(levels int) (bids, asks []OrderBookLevel) {
	return aggregate(ob.bids, levels), aggregate(ob.asks, levels)
}

func aggregate(tree *btree.BTreeG[*OrderWrapper], levels int) []OrderBookLevel {
	out := make([]OrderBookLevel, 0)
	tree.Ascend(func(w *OrderWrapper) bool {
		price := w.LimitPrice.Decimal
		if n := len(out); n > 0 && out[n-1].Price.Equal(price) {
			out[n-1].Volume = out[n-1].Volume.Add(w.Remaining())
			out[n-1].Count++
			return true
		}
		if levels > 0 && len(out) == levels {
			return false
		}
		out = append(out, OrderBookLevel{Price: price, Volume: w.Remaining(), Count: 1})
		return true
	})
	return out
}

// BestBid returns the highest bid price and the volume resting there.
func (ob *OrderBook) BestBid() (OrderBookLevel, bool) {
	return best(ob.bids)
}

// BestAsk returns the lowest ask price and the volume resting there.
func (ob *OrderBook) BestAsk() (OrderBookLevel, bool) {
	return best(ob.asks)
}

func best(tree *btree.BTreeG[*OrderWrapper]) (OrderBookLevel, bool) {
	lv := aggregate(tree, 1)
	if len(lv) == 0 {
		return OrderBookLevel{}, false
	}
	return lv[0], true
}

// OrdersFor returns the resting orders of one account, bids first.
func (ob *OrderBook) OrdersFor(accountID int64) []*models.Order {
	var orders []*models.Order
	collect := func(w *OrderWrapper) bool {
		if w.AccountID == accountID {
			orders = append(orders, w.Order)
		}
		return true
	}
	ob.bids.Ascend(collect)
	ob.asks.Ascend(collect)
	return orders
}

// CostToBuy walks the asks and prices a market buy of qty, skipping orders
// owned by the buyer. filled is less than qty when the book is too thin.
func (ob *OrderBook) CostToBuy(accountID int64, qty decimal.Decimal) (cost, filled decimal.Decimal) {
	cost, filled = decimal.Zero, decimal.Zero
	ob.asks.Ascend(func(w *OrderWrapper) bool {
		if w.AccountID == accountID {
			return true
		}
		take := decimal.Min(qty.Sub(filled), w.Remaining())
		cost = cost.Add(take.Mul(w.LimitPrice.Decimal))
		filled = filled.Add(take)
		return filled.LessThan(qty)
	})
	return cost, filled
}
