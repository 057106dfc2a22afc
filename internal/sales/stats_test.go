package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatistics_CategoryBreakdown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, NewSale{Client: "A", TotalValue: dec("50.00"), InitialPayment: dec("50.00"), Categories: []string{"Zapatos"}})
	register(t, svc, NewSale{Client: "B", TotalValue: dec("150.00"), Categories: []string{"Zapatos", "Accesorios"}})

	stats, err := svc.ComputeStatistics(ctx, owner)
	require.NoError(t, err)

	zapatos := stats.ByCategory["Zapatos"]
	assert.Equal(t, 2, zapatos.Count)
	assert.Equal(t, "200.00", zapatos.TotalValue.StringFixed(2))
	assert.Equal(t, "50.00", zapatos.Paid.StringFixed(2))
	assert.Equal(t, "150.00", zapatos.Pending.StringFixed(2))

	accesorios := stats.ByCategory["Accesorios"]
	assert.Equal(t, 1, accesorios.Count)
	assert.Equal(t, "150.00", accesorios.TotalValue.StringFixed(2))

	assert.Len(t, stats.ByCategory, len(DefaultCategories))
	assert.Equal(t, 0, stats.ByCategory["Maquillaje"].Count)

	// Totals only cover counted open sales.
	assert.Equal(t, 1, stats.OpenCount)
	assert.Equal(t, 1, stats.ClosedCount)
	assert.Equal(t, 0, stats.ExcludedCount)
	assert.Equal(t, 2, stats.SalesCount)
	assert.Equal(t, "150.00", stats.TotalValue.StringFixed(2))
	assert.Equal(t, "0.00", stats.TotalPaid.StringFixed(2))
	assert.Equal(t, "150.00", stats.TotalPending.StringFixed(2))
}

func TestComputeStatistics_ExcludedSalesDropOut(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, NewSale{Client: "A", TotalValue: dec("50"), InitialPayment: dec("50"), Categories: []string{"Zapatos"}})
	register(t, svc, NewSale{Client: "B", TotalValue: dec("80"), InitialPayment: dec("10"), Categories: []string{"Zapatos"}})

	_, err := svc.CloseStatisticsPeriod(ctx, owner, 3, 2024)
	require.NoError(t, err)

	stats, err := svc.ComputeStatistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExcludedCount)
	assert.Equal(t, 0, stats.ClosedCount)
	assert.Equal(t, 2, stats.SalesCount)
	assert.Equal(t, 1, stats.ByCategory["Zapatos"].Count)
	assert.Equal(t, "80.00", stats.ByCategory["Zapatos"].TotalValue.StringFixed(2))
}

func TestComputeStatisticsForPeriod(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, NewSale{Client: "Enero", TotalValue: dec("100"), InitialPayment: dec("40"), Categories: []string{"Renacer"}, SaleDate: "2024-01-15"})
	register(t, svc, NewSale{Client: "Enero 2", TotalValue: dec("10"), InitialPayment: dec("10"), Categories: []string{"Renacer", "Tendencia"}, SaleDate: "2024-01-03"})
	register(t, svc, NewSale{Client: "Enero 3", TotalValue: dec("5"), Categories: []string{"Tendencia"}, SaleDate: "2024-01-15"})
	register(t, svc, NewSale{Client: "Febrero", TotalValue: dec("999"), Categories: []string{"Renacer"}, SaleDate: "2024-02-01"})

	// Excluded sales still count in period statistics.
	_, err := svc.CloseStatisticsPeriod(ctx, owner, 1, 2024)
	require.NoError(t, err)

	period, err := svc.ComputeStatisticsForPeriod(ctx, owner, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.NotNil(t, period)

	assert.Equal(t, 3, period.SalesCount)
	assert.Equal(t, "115.00", period.TotalValue.StringFixed(2))
	assert.Equal(t, "50.00", period.TotalPaid.StringFixed(2))
	assert.Equal(t, "65.00", period.TotalPending.StringFixed(2))
	assert.Equal(t, 2, period.OpenCount)
	assert.Equal(t, 1, period.ClosedCount)
	assert.Equal(t, 2, period.ByCategory["Renacer"].Count)
	assert.Equal(t, 2, period.ByCategory["Tendencia"].Count)

	require.Len(t, period.ByDay, 2)
	assert.Equal(t, "2024-01-03", period.ByDay[0].Date.String())
	assert.Equal(t, 1, period.ByDay[0].Count)
	assert.Equal(t, "2024-01-15", period.ByDay[1].Date.String())
	assert.Equal(t, 2, period.ByDay[1].Count)
	assert.Equal(t, "105.00", period.ByDay[1].TotalValue.StringFixed(2))
	assert.Equal(t, "40.00", period.ByDay[1].Paid.StringFixed(2))

	require.Len(t, period.Sales, 3)
	assert.Equal(t, "Enero 2", period.Sales[0].Client)
}

func TestComputeStatisticsForPeriod_InclusiveBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, NewSale{Client: "Primero", TotalValue: dec("1"), Categories: []string{"Renacer"}, SaleDate: "2024-01-15"})
	register(t, svc, NewSale{Client: "Segundo", TotalValue: dec("1"), Categories: []string{"Renacer"}, SaleDate: "2024-02-01"})

	period, err := svc.ComputeStatisticsForPeriod(ctx, owner, "2024-01-15", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, period.Sales, 1)
	assert.Equal(t, "Primero", period.Sales[0].Client)

	period, err = svc.ComputeStatisticsForPeriod(ctx, owner, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, period.Sales, 1)
	assert.Equal(t, "Primero", period.Sales[0].Client)
}

func TestComputeStatisticsForPeriod_SoftFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, NewSale{Client: "A", TotalValue: dec("1"), Categories: []string{"Renacer"}, SaleDate: "2024-01-15"})

	for _, dates := range [][2]string{{"2024-13-01", "2024-12-31"}, {"2024-01-01", "ayer"}, {"", ""}} {
		period, err := svc.ComputeStatisticsForPeriod(ctx, owner, dates[0], dates[1])
		assert.NoError(t, err)
		assert.Nil(t, period, dates)
	}

	period, err := svc.ComputeStatisticsForPeriod(ctx, owner, "2024-02-01", "2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.Equal(t, 0, period.SalesCount)
	assert.Empty(t, period.ByDay)
}

func TestCloseStatisticsPeriod(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	closed := register(t, svc, NewSale{Client: "A", TotalValue: dec("50"), InitialPayment: dec("50"), Categories: []string{"Zapatos"}})
	open := register(t, svc, NewSale{Client: "B", TotalValue: dec("80"), InitialPayment: dec("10"), Categories: []string{"Zapatos"}})

	pending, err := svc.ListPendingClosing(ctx, owner)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, closed.ID, pending[0].ID)

	report, err := svc.CloseStatisticsPeriod(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Month)
	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, "2024-03", report.Period)
	assert.Equal(t, 1, report.ExcludedCount)
	assert.Equal(t, "50.00", report.ExcludedValue.StringFixed(2))
	assert.Equal(t, "50.00", report.ExcludedPaid.StringFixed(2))
	assert.Equal(t, "2024-03-10 15:04", report.ClosedAt.String())

	stored, err := svc.GetSale(ctx, owner, closed.ID)
	require.NoError(t, err)
	assert.False(t, stored.CountedInStatistics)
	require.NotNil(t, stored.ClosedPeriod)
	assert.Equal(t, "2024-03", *stored.ClosedPeriod)
	assert.Len(t, stored.Payments, 1, "closing never touches payments")

	untouched, err := svc.GetSale(ctx, owner, open.ID)
	require.NoError(t, err)
	assert.True(t, untouched.CountedInStatistics)

	again, err := svc.CloseStatisticsPeriod(ctx, owner, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 0, again.ExcludedCount)
	assert.True(t, again.ExcludedValue.IsZero())

	excluded, err := svc.ListExcluded(ctx, owner)
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, closed.ID, excluded[0].ID)
}

func TestCloseStatisticsPeriod_LaterClosingKeepsFirstLabel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	first := register(t, svc, NewSale{Client: "A", TotalValue: dec("5"), InitialPayment: dec("5"), Categories: []string{"Zapatos"}})

	_, err := svc.CloseStatisticsPeriod(ctx, owner, 2, 2024)
	require.NoError(t, err)

	second := register(t, svc, NewSale{Client: "B", TotalValue: dec("5"), Categories: []string{"Zapatos"}})
	_, err = svc.ApplyPayment(ctx, owner, second.ID, dec("5"), "")
	require.NoError(t, err)

	report, err := svc.CloseStatisticsPeriod(ctx, owner, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExcludedCount)

	got, err := svc.GetSale(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", *got.ClosedPeriod)
	got, err = svc.GetSale(ctx, owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", *got.ClosedPeriod)
}

func TestCloseStatisticsPeriod_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CloseStatisticsPeriod(context.Background(), owner, 13, 2024)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CloseStatisticsPeriod(context.Background(), owner, -1, 2024)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "2024-03", PeriodLabel(2024, time.March))
	assert.Equal(t, "2023-12", PeriodLabel(2023, time.December))
}
