package store

import (
	"context"
	"io/fs"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
)

func TestLoadEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(mustSub(t))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS balances")

	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "ledger_references", migrations[1].Name)
	assert.Contains(t, migrations[1].SQL, "REFERENCES currencies (code)")
	assert.Contains(t, migrations[1].SQL, "REFERENCES currency_pairs (base, quote)")
}

// newTestPostgres connects to POSTGRES_TEST_DSN and applies the schema. The
// database should be disposable.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, NewMigrator(s.GetDB(), zap.NewNop()).Migrate(ctx))
	_, err = s.GetDB().ExecContext(ctx, `TRUNCATE trades, orders, balances RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = SyncMarkets(ctx, s.GetDB(), models.DefaultMarkets())
	require.NoError(t, err)
	return s
}

func TestPostgresStore_LedgerRoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	o := testOrder(1, models.Buy, "100.5", "2")
	err := s.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.AdjustBalance(ctx, 1, "USDT", decimal.NewFromInt(500)); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, o)
	})
	require.NoError(t, err)
	require.NotZero(t, o.ID)

	err = s.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		committed, err := tx.CommittedBalance(ctx, 1, "USDT")
		require.NoError(t, err)
		assert.True(t, committed.Equal(decimal.RequireFromString("201")))

		_, err = tx.AdjustBalance(ctx, 1, "USDT", decimal.NewFromInt(-501))
		assert.ErrorIs(t, err, ledger.ErrNegativeBalance)
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.LimitPrice.Decimal.Equal(decimal.RequireFromString("100.5")))

	open, err := s.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestPostgresStore_RejectsUnlistedMarkets(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.AdjustBalance(ctx, 1, "DOGE", decimal.NewFromInt(5))
		return err
	})
	assert.Error(t, err)

	o := testOrder(1, models.Sell, "1", "1")
	o.Pair, o.BaseCurrency = "DOGE-USDT", "DOGE"
	err = s.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertOrder(ctx, o)
	})
	assert.Error(t, err)
}

func TestSyncMarkets_ReportsDrift(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	btc, _ := models.DefaultMarkets().Currency("BTC")
	usdt, _ := models.DefaultMarkets().Currency("USDT")
	narrow, err := models.NewMarkets([]*models.Currency{btc, usdt}, []models.Pair{{Base: "BTC", Quote: "USDT"}})
	require.NoError(t, err)

	synced, err := SyncMarkets(ctx, s.GetDB(), narrow)
	require.NoError(t, err)
	assert.Zero(t, synced.AddedPairs)
	assert.Contains(t, synced.Inactive, "ETH")
	assert.NotContains(t, synced.Inactive, "BTC")
	assert.Contains(t, synced.Unlisted, models.Pair{Base: "ETH", Quote: "USDT"})
	assert.NotContains(t, synced.Unlisted, models.Pair{Base: "BTC", Quote: "USDT"})

	// Syncing the full registry again relists what was deactivated.
	synced, err = SyncMarkets(ctx, s.GetDB(), models.DefaultMarkets())
	require.NoError(t, err)
	assert.Empty(t, synced.Inactive)
	assert.Empty(t, synced.Unlisted)
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	require.NoError(t, err)
	return sub
}
