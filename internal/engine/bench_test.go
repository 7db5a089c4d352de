package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/store"
)

// BenchmarkOrderBook_Insert benchmarks resting order insertion.
func BenchmarkOrderBook_Insert(b *testing.B) {
	ob := NewOrderBook(testPair)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ob.Insert(createBenchmarkOrder(int64(i+1), models.Buy, 50000+int64(i%100)))
	}
}

// BenchmarkOrderBook_InsertRemove benchmarks the churn of orders entering and
// leaving one price band.
func BenchmarkOrderBook_InsertRemove(b *testing.B) {
	ob := NewOrderBook(testPair)
	for i := 0; i < 10000; i++ {
		ob.Insert(createBenchmarkOrder(int64(i+1), models.Sell, 51000+int64(i%100)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := int64(100000 + i)
		ob.Insert(createBenchmarkOrder(id, models.Sell, 51000+int64(i%100)))
		ob.Remove(id)
	}
}

// BenchmarkOrderBook_Candidates benchmarks walking the first levels of the
// opposite side.
func BenchmarkOrderBook_Candidates(b *testing.B) {
	ob := NewOrderBook(testPair)
	for i := 0; i < 10000; i++ {
		ob.Insert(createBenchmarkOrder(int64(i+1), models.Sell, 51000+int64(i%100)))
	}
	limit := decimal.NewNullDecimal(decimal.NewFromInt(51010))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		for range ob.Candidates(models.Buy, limit) {
			n++
			if n == 50 {
				break
			}
		}
	}
}

// BenchmarkOrderBook_Depth benchmarks order book depth aggregation.
func BenchmarkOrderBook_Depth(b *testing.B) {
	ob := NewOrderBook(testPair)
	for i := 0; i < 1000; i++ {
		ob.Insert(createBenchmarkOrder(int64(i+1), models.Buy, 50000+int64(i%100)))
		ob.Insert(createBenchmarkOrder(int64(i+1001), models.Sell, 51000+int64(i%100)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ob.Depth(10)
	}
}

// BenchmarkEngine_MatchWithSettlement measures one crossing fill settled in
// a bbolt ledger per iteration.
func BenchmarkEngine_MatchWithSettlement(b *testing.B) {
	st, err := store.NewBoltStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	e := New(st, []models.Pair{{Base: "BTC", Quote: "USDT"}}, zap.NewNop())
	err = st.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.AdjustBalance(ctx, 1, "BTC", decimal.NewFromInt(int64(b.N)+1)); err != nil {
			return err
		}
		_, err := tx.AdjustBalance(ctx, 2, "USDT", decimal.NewFromInt(100*(int64(b.N)+1)))
		return err
	})
	if err != nil {
		b.Fatal(err)
	}

	insert := func(o *models.Order) {
		if err := st.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.InsertOrder(ctx, o)
		}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		sell := limitOrder(1, models.Sell, "100", "1", time.Now())
		insert(sell)
		if _, err := e.Match(ctx, sell); err != nil {
			b.Fatal(err)
		}
		buy := marketOrder(2, models.Buy, "1", time.Now())
		insert(buy)
		b.StartTimer()

		if _, err := e.Match(ctx, buy); err != nil {
			b.Fatal(err)
		}
	}
}

// createBenchmarkOrder creates a resting limit order for benchmarking.
func createBenchmarkOrder(id int64, side models.Side, price int64) *models.Order {
	o := limitOrder(id, side, "1", "1", time.Now())
	o.ID = id
	o.LimitPrice = decimal.NewNullDecimal(decimal.NewFromInt(price))
	return o
}
