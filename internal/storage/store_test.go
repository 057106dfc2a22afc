package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ventas/internal/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const owner = "ana@example.com"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "ventas.db")
	store, err := Open(context.Background(), "sqlite:///"+path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// openPostgres needs a disposable database; the ledger tables are truncated.
func openPostgres(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres store tests")
	}
	store, err := Open(context.Background(), dbURL, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = store.db.Exec(`TRUNCATE TABLE sale_categories, payments, sales CASCADE`)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, openSQLite)
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, openPostgres)
}

func runStoreSuite(t *testing.T, open func(*testing.T) *Store) {
	t.Run("ledger lifecycle", func(t *testing.T) { testLedgerLifecycle(t, open(t)) })
	t.Run("delete cascades", func(t *testing.T) { testDeleteCascades(t, open(t)) })
	t.Run("filters", func(t *testing.T) { testFilters(t, open(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("client search folds case", func(t *testing.T) { testClientSearchFoldsCase(t, open(t)) })
}

func newService(t *testing.T, store *Store) *sales.Service {
	return sales.NewService(store, zaptest.NewLogger(t), nil)
}

func testLedgerLifecycle(t *testing.T, store *Store) {
	ctx := context.Background()
	svc := newService(t, store)

	sale, err := svc.RegisterSale(ctx, owner, sales.NewSale{
		Client:         "Ana",
		TotalValue:     dec("100.00"),
		InitialPayment: dec("30.00"),
		Categories:     []string{"Maquillaje", "Zapatos"},
		SaleDate:       "2024-01-15",
	})
	require.NoError(t, err)

	got, err := svc.GetSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Client)
	assert.Equal(t, "100.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "70.00", got.OutstandingBalance.StringFixed(2))
	assert.Equal(t, []string{"Maquillaje", "Zapatos"}, got.Categories)
	assert.Equal(t, "2024-01-15", got.SaleDate.String())
	assert.Equal(t, sale.CreatedAt.Stored(), got.CreatedAt.Stored())
	assert.Equal(t, sales.StatusOpen, got.Status)
	assert.True(t, got.CountedInStatistics)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, sales.PaymentKindInitial, got.Payments[0].Kind)

	_, err = svc.ApplyPayment(ctx, owner, sale.ID, dec("71.00"), "")
	assert.ErrorIs(t, err, sales.ErrExceedsBalance)

	_, err = svc.ApplyPayment(ctx, owner, sale.ID, dec("20.00"), "Cuota")
	require.NoError(t, err)
	closed, err := svc.ApplyPayment(ctx, owner, sale.ID, dec("50.00"), "")
	require.NoError(t, err)
	assert.Equal(t, sales.StatusClosed, closed.Status)

	got, err = svc.GetSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusClosed, got.Status)
	assert.Equal(t, "0.00", got.OutstandingBalance.StringFixed(2))
	assert.Equal(t, "100.00", got.PaidAmount.StringFixed(2))
	require.Len(t, got.Payments, 3)
	assert.Equal(t, []string{sales.PaymentKindInitial, "Cuota", sales.PaymentKindDefault},
		[]string{got.Payments[0].Kind, got.Payments[1].Kind, got.Payments[2].Kind})
	assert.True(t, got.PaymentsTotal().Equal(got.PaidAmount))

	_, err = svc.ApplyPayment(ctx, owner, sale.ID, dec("1"), "")
	assert.ErrorIs(t, err, sales.ErrAlreadyClosed)

	report, err := svc.CloseStatisticsPeriod(ctx, owner, 1, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExcludedCount)
	again, err := svc.CloseStatisticsPeriod(ctx, owner, 1, 2024)
	require.NoError(t, err)
	assert.Equal(t, 0, again.ExcludedCount)

	got, err = svc.GetSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.False(t, got.CountedInStatistics)
	require.NotNil(t, got.ClosedPeriod)
	assert.Equal(t, "2024-01", *got.ClosedPeriod)

	_, err = svc.GetSale(ctx, "intruso@example.com", sale.ID)
	assert.ErrorIs(t, err, sales.ErrNotFound)
}

func testDeleteCascades(t *testing.T, store *Store) {
	ctx := context.Background()
	svc := newService(t, store)

	sale, err := svc.RegisterSale(ctx, owner, sales.NewSale{
		Client: "Ana", TotalValue: dec("10"), InitialPayment: dec("5"), Categories: []string{"Zapatos", "Renacer"},
	})
	require.NoError(t, err)

	deleted, err := svc.DeleteSale(ctx, "intruso@example.com", sale.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = svc.DeleteSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	var payments, categories int
	require.NoError(t, store.db.QueryRow(store.dialect.rebind(`SELECT COUNT(*) FROM payments WHERE sale_id = ?`), sale.ID).Scan(&payments))
	require.NoError(t, store.db.QueryRow(store.dialect.rebind(`SELECT COUNT(*) FROM sale_categories WHERE sale_id = ?`), sale.ID).Scan(&categories))
	assert.Zero(t, payments)
	assert.Zero(t, categories)
}

func testFilters(t *testing.T, store *Store) {
	ctx := context.Background()
	svc := newService(t, store)

	for _, in := range []sales.NewSale{
		{Client: "Ana Maria", TotalValue: dec("20"), Categories: []string{"Maquillaje"}, SaleDate: "2024-01-15"},
		{Client: "Mariana", TotalValue: dec("30"), InitialPayment: dec("30"), Categories: []string{"Zapatos"}, SaleDate: "2024-02-01"},
		{Client: "100%_Pedro", TotalValue: dec("40"), Categories: []string{"Zapatos"}, SaleDate: "2024-01-31"},
	} {
		_, err := svc.RegisterSale(ctx, owner, in)
		require.NoError(t, err)
	}

	found, err := svc.ListSales(ctx, owner, sales.ListOptions{Query: "mari"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Mariana", found[0].Client)

	found, err = svc.ListSales(ctx, owner, sales.ListOptions{Query: "%_"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100%_Pedro", found[0].Client)

	period, err := svc.ComputeStatisticsForPeriod(ctx, owner, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 2, period.SalesCount)
	assert.Equal(t, "60.00", period.TotalValue.StringFixed(2))

	stats, err := svc.ComputeStatistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OpenCount)
	assert.Equal(t, 1, stats.ClosedCount)
	assert.Equal(t, 2, stats.ByCategory["Zapatos"].Count)

	pending, err := svc.ListPendingClosing(ctx, owner)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Mariana", pending[0].Client)
}

func testClientSearchFoldsCase(t *testing.T, store *Store) {
	ctx := context.Background()
	svc := newService(t, store)
	for _, client := range []string{"ÁNGELA Ruiz", "josé", "Ana Maria"} {
		_, err := svc.RegisterSale(ctx, owner, sales.NewSale{Client: client, TotalValue: dec("10"), Categories: []string{"Zapatos"}})
		require.NoError(t, err)
	}

	tests := map[string][]string{
		"ángela": {"ÁNGELA Ruiz"},
		"JOSÉ":   {"josé"},
		"maría":  nil,
	}
	for query, want := range tests {
		found, err := svc.ListSales(ctx, owner, sales.ListOptions{Query: query})
		require.NoError(t, err)
		var got []string
		for _, s := range found {
			got = append(got, s.Client)
		}
		assert.Equal(t, want, got, query)
	}

	local := sales.NewService(sales.NewLocalStorage(), zaptest.NewLogger(t), nil)
	for _, client := range []string{"ÁNGELA Ruiz", "josé", "Ana Maria"} {
		_, err := local.RegisterSale(ctx, owner, sales.NewSale{Client: client, TotalValue: dec("10"), Categories: []string{"Zapatos"}})
		require.NoError(t, err)
	}
	for query, want := range tests {
		found, err := local.ListSales(ctx, owner, sales.ListOptions{Query: query})
		require.NoError(t, err)
		assert.Len(t, found, len(want), "in-memory store disagrees on %q", query)
	}
}

func testRollback(t *testing.T, store *Store) {
	ctx := context.Background()
	svc := newService(t, store)
	sale, err := svc.RegisterSale(ctx, owner, sales.NewSale{Client: "Ana", TotalValue: dec("10"), Categories: []string{"Zapatos"}})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(repo sales.Repository) error {
		if err := repo.AddPayment(ctx, &sales.Payment{
			ID: "p-rollback", SaleID: sale.ID, Amount: dec("5"), RecordedAt: sales.NewTimestamp(time.Now()), Kind: "Abono",
		}); err != nil {
			return err
		}
		return sales.ErrInvalidState
	})
	assert.ErrorIs(t, err, sales.ErrInvalidState)

	got, err := svc.GetSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Payments)
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		dialect Dialect
		driver  string
		target  string
	}{
		{"sqlite:///ventas.db", SQLite, "sqlite", "ventas.db"},
		{"sqlite:////var/lib/ventas.db", SQLite, "sqlite", "/var/lib/ventas.db"},
		{"./data/ventas.db", SQLite, "sqlite", "./data/ventas.db"},
		{"postgres://u:p@db/ventas", Postgres, "pgx", "postgres://u:p@db/ventas"},
		{"postgresql://u:p@db/ventas?sslmode=require", Postgres, "pgx", "postgresql://u:p@db/ventas?sslmode=require"},
	}
	for _, tt := range tests {
		dialect, driver, target, err := ParseDatabaseURL(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.dialect, dialect, tt.raw)
		assert.Equal(t, tt.driver, driver, tt.raw)
		assert.Equal(t, tt.target, target, tt.raw)
	}

	for _, bad := range []string{"", "mysql://root@db/ventas"} {
		_, _, _, err := ParseDatabaseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM sales WHERE id = ? AND owner = ?`
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, `SELECT * FROM sales WHERE id = $1 AND owner = $2`, Postgres.rebind(q))
	assert.Equal(t, " FOR UPDATE", Postgres.lockClause(true))
	assert.Empty(t, SQLite.lockClause(true))
	assert.Empty(t, Postgres.lockClause(false))
}
