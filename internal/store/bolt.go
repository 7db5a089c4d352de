package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

const (
	bucketBalances      = "balances"
	bucketOrders        = "orders"
	bucketAccountOrders = "account_orders"
	bucketOpenOrders    = "open_orders"
	bucketTrades        = "trades"
)

// BoltStore is an embedded ledger. bbolt allows one writer at a time, so
// every WithTransaction call is serialized against the others.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	s := &BoltStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketBalances, bucketOrders, bucketAccountOrders, bucketOpenOrders, bucketTrades} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketOrders)) == nil {
			return errors.New("bolt: orders bucket missing")
		}
		return nil
	})
}

func (s *BoltStore) WithTransaction(ctx context.Context, fn ledger.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(ctx, &boltTx{tx: tx, now: s.now})
	})
}

func (s *BoltStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		o, err := getOrder(tx, id)
		out = o
		return err
	})
	return out, err
}

func (s *BoltStore) ListOrders(_ context.Context, accountID int64) ([]*models.Order, error) {
	var out []*models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := itob(uint64(accountID))
		c := tx.Bucket([]byte(bucketAccountOrders)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			o, err := getOrder(tx, int64(btoi(k[8:])))
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) OpenOrders(_ context.Context) ([]*models.Order, error) {
	var out []*models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOpenOrders)).ForEach(func(k, _ []byte) error {
			o, err := getOrder(tx, int64(btoi(k)))
			if err != nil {
				return err
			}
			if o.Type == models.Limit && o.Status.IsOpen() {
				out = append(out, o)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *BoltStore) Balances(_ context.Context, accountID int64) ([]*models.Balance, error) {
	var out []*models.Balance
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := itob(uint64(accountID))
		c := tx.Bucket([]byte(bucketBalances)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var b models.Balance
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("decode balance: %w", err)
			}
			out = append(out, &b)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) RecentTrades(_ context.Context, pair string, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]*models.Trade, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTrades)).Bucket([]byte(pair))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var t models.Trade
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decode trade: %w", err)
			}
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

type boltTx struct {
	tx  *bolt.Tx
	now func() time.Time
}

func (t *boltTx) GetBalance(_ context.Context, accountID int64, currency string) (decimal.Decimal, error) {
	b, err := getBalance(t.tx, accountID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Amount, nil
}

func (t *boltTx) AdjustBalance(_ context.Context, accountID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	b, err := getBalance(t.tx, accountID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	next := b.Amount.Add(delta)
	if next.IsNegative() {
		return b.Amount, fmt.Errorf("%w: account %d %s has %s, delta %s",
			ledger.ErrNegativeBalance, accountID, currency, b.Amount, delta)
	}
	b.Amount = next
	b.UpdatedAt = t.now()
	raw, err := json.Marshal(b)
	if err != nil {
		return decimal.Zero, err
	}
	if err := t.tx.Bucket([]byte(bucketBalances)).Put(balanceKey(accountID, currency), raw); err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

func (t *boltTx) CommittedBalance(_ context.Context, accountID int64, currency string) (decimal.Decimal, error) {
	total := decimal.Zero
	prefix := itob(uint64(accountID))
	c := t.tx.Bucket([]byte(bucketAccountOrders)).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		id := btoi(k[8:])
		if t.tx.Bucket([]byte(bucketOpenOrders)).Get(itob(id)) == nil {
			continue
		}
		o, err := getOrder(t.tx, int64(id))
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(ledger.Commitment(o, currency))
	}
	return total, nil
}

func (t *boltTx) InsertOrder(_ context.Context, o *models.Order) error {
	orders := t.tx.Bucket([]byte(bucketOrders))
	id, err := orders.NextSequence()
	if err != nil {
		return err
	}
	o.ID = int64(id)
	now := t.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if err := t.tx.Bucket([]byte(bucketAccountOrders)).Put(accountOrderKey(o.AccountID, o.ID), nil); err != nil {
		return err
	}
	return putOrder(t.tx, o)
}

func (t *boltTx) UpdateOrder(_ context.Context, o *models.Order) error {
	if _, err := getOrder(t.tx, o.ID); err != nil {
		return err
	}
	return putOrder(t.tx, o)
}

func (t *boltTx) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	return getOrder(t.tx, id)
}

func (t *boltTx) InsertTrade(_ context.Context, tr *models.Trade) error {
	trades := t.tx.Bucket([]byte(bucketTrades))
	id, err := trades.NextSequence()
	if err != nil {
		return err
	}
	byPair, err := trades.CreateBucketIfNotExists([]byte(tr.Pair))
	if err != nil {
		return err
	}
	tr.ID = int64(id)
	raw, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return byPair.Put(itob(id), raw)
}

func getOrder(tx *bolt.Tx, id int64) (*models.Order, error) {
	v := tx.Bucket([]byte(bucketOrders)).Get(itob(uint64(id)))
	if v == nil {
		return nil, fmt.Errorf("%w: %d", ledger.ErrOrderNotFound, id)
	}
	var o models.Order
	if err := json.Unmarshal(v, &o); err != nil {
		return nil, fmt.Errorf("decode order %d: %w", id, err)
	}
	return &o, nil
}

func putOrder(tx *bolt.Tx, o *models.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := itob(uint64(o.ID))
	if err := tx.Bucket([]byte(bucketOrders)).Put(key, raw); err != nil {
		return err
	}
	open := tx.Bucket([]byte(bucketOpenOrders))
	if o.Status.IsOpen() {
		return open.Put(key, nil)
	}
	return open.Delete(key)
}

func getBalance(tx *bolt.Tx, accountID int64, currency string) (*models.Balance, error) {
	b := &models.Balance{AccountID: accountID, Currency: currency, Amount: decimal.Zero}
	v := tx.Bucket([]byte(bucketBalances)).Get(balanceKey(accountID, currency))
	if v == nil {
		return b, nil
	}
	if err := json.Unmarshal(v, b); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return b, nil
}

func balanceKey(accountID int64, currency string) []byte {
	return append(itob(uint64(accountID)), currency...)
}

func accountOrderKey(accountID, orderID int64) []byte {
	return append(itob(uint64(accountID)), itob(uint64(orderID))...)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
