package sales

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Aggregate is the count and money totals of a group of sales.
type Aggregate struct {
	Count      int             `json:"cantidad"`
	TotalValue decimal.Decimal `json:"valor_total"`
	Paid       decimal.Decimal `json:"abonado"`
	Pending    decimal.Decimal `json:"pendiente"`
}

func newAggregate() Aggregate {
	return Aggregate{TotalValue: Zero, Paid: Zero, Pending: Zero}
}

func (a *Aggregate) add(s *Sale) {
	a.Count++
	a.TotalValue = a.TotalValue.Add(s.TotalValue)
	a.Paid = a.Paid.Add(s.PaidAmount)
	a.Pending = a.Pending.Add(s.OutstandingBalance)
}

// StatsSummary is the current-statistics view of an owner's ledger.
type StatsSummary struct {
	OpenCount     int `json:"total_ventas_activas"`
	ClosedCount   int `json:"total_ventas_cerradas"`
	ExcludedCount int `json:"total_ventas_excluidas"`
	SalesCount    int `json:"total_ventas"`

	// Totals over counted sales that are still open.
	TotalValue   decimal.Decimal `json:"total_valor"`
	TotalPaid    decimal.Decimal `json:"total_abonado"`
	TotalPending decimal.Decimal `json:"total_pendiente"`

	// ByCategory covers every counted sale, open or closed. A sale with
	// several categories contributes fully to each of them.
	ByCategory map[string]Aggregate `json:"por_rubro"`
}

// DayBucket aggregates the sales of one sale date.
type DayBucket struct {
	Date       Date            `json:"fecha"`
	Count      int             `json:"cantidad"`
	TotalValue decimal.Decimal `json:"valor_total"`
	Paid       decimal.Decimal `json:"abonado"`
}

// PeriodSummary covers every sale dated within [Start, End], whatever its status
// or statistics flag.
type PeriodSummary struct {
	Start        Date                 `json:"fecha_inicio"`
	End          Date                 `json:"fecha_fin"`
	SalesCount   int                  `json:"total_ventas"`
	TotalValue   decimal.Decimal      `json:"total_valor"`
	TotalPaid    decimal.Decimal      `json:"total_abonado"`
	TotalPending decimal.Decimal      `json:"total_pendiente"`
	OpenCount    int                  `json:"ventas_activas"`
	ClosedCount  int                  `json:"ventas_cerradas"`
	ByCategory   map[string]Aggregate `json:"por_rubro"`
	ByDay        []DayBucket          `json:"por_dia"`
	Sales        []*Sale              `json:"ventas_detalle"`
}

func categoryBreakdown(categories *Vocabulary, sales []*Sale) map[string]Aggregate {
	out := make(map[string]Aggregate, len(categories.names))
	for _, name := range categories.names {
		agg := newAggregate()
		for _, s := range sales {
			if s.HasCategory(name) {
				agg.add(s)
			}
		}
		out[name] = agg
	}
	return out
}

// Summarize derives the current statistics from an owner's full sale list.
func Summarize(categories *Vocabulary, sales []*Sale) *StatsSummary {
	summary := &StatsSummary{SalesCount: len(sales)}
	open := newAggregate()
	counted := make([]*Sale, 0, len(sales))

	for _, s := range sales {
		if !s.CountedInStatistics {
			summary.ExcludedCount++
			continue
		}
		counted = append(counted, s)
		if s.IsOpen() {
			open.add(s)
		} else {
			summary.ClosedCount++
		}
	}

	summary.OpenCount = open.Count
	summary.TotalValue = open.TotalValue
	summary.TotalPaid = open.Paid
	summary.TotalPending = open.Pending
	summary.ByCategory = categoryBreakdown(categories, counted)
	return summary
}

// SummarizePeriod aggregates the given sales, which the caller has already
// restricted to the period.
func SummarizePeriod(categories *Vocabulary, start, end Date, sales []*Sale) *PeriodSummary {
	summary := &PeriodSummary{
		Start:      start,
		End:        end,
		SalesCount: len(sales),
		ByDay:      []DayBucket{},
		Sales:      sales,
	}
	if summary.Sales == nil {
		summary.Sales = []*Sale{}
	}

	totals := newAggregate()
	days := map[string]*DayBucket{}
	for _, s := range sales {
		totals.add(s)
		if s.IsOpen() {
			summary.OpenCount++
		} else {
			summary.ClosedCount++
		}

		key := s.SaleDate.String()
		b, ok := days[key]
		if !ok {
			b = &DayBucket{Date: s.SaleDate, TotalValue: Zero, Paid: Zero}
			days[key] = b
		}
		b.Count++
		b.TotalValue = b.TotalValue.Add(s.TotalValue)
		b.Paid = b.Paid.Add(s.PaidAmount)
	}

	for _, b := range days {
		summary.ByDay = append(summary.ByDay, *b)
	}
	sort.Slice(summary.ByDay, func(i, j int) bool {
		return summary.ByDay[i].Date.Compare(summary.ByDay[j].Date) < 0
	})

	summary.TotalValue = totals.TotalValue
	summary.TotalPaid = totals.Paid
	summary.TotalPending = totals.Pending
	summary.ByCategory = categoryBreakdown(categories, sales)
	return summary
}

// ComputeStatistics summarizes the owner's ledger. It has no side effects.
func (s *Service) ComputeStatistics(ctx context.Context, owner string) (*StatsSummary, error) {
	sales, err := s.list(ctx, SaleFilter{Owner: owner})
	if err != nil {
		return nil, err
	}
	return Summarize(s.categories, sales), nil
}

// ComputeStatisticsForPeriod summarizes the owner's sales dated between start
// and end inclusive. Malformed dates are not an error: the result is nil.
func (s *Service) ComputeStatisticsForPeriod(ctx context.Context, owner, start, end string) (*PeriodSummary, error) {
	from, err := ParseDate(start)
	if err != nil {
		s.logger.Warn("invalid period start", zap.String("owner", owner), zap.String("fecha_inicio", start))
		return nil, nil
	}
	to, err := ParseDate(end)
	if err != nil {
		s.logger.Warn("invalid period end", zap.String("owner", owner), zap.String("fecha_fin", end))
		return nil, nil
	}

	var sales []*Sale
	if from.Compare(to) <= 0 {
		sales, err = s.list(ctx, SaleFilter{Owner: owner, From: from, To: to})
		if err != nil {
			return nil, err
		}
	}
	// Oldest first, like the day series.
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].SaleDate.Compare(sales[j].SaleDate) < 0
	})

	summary := SummarizePeriod(s.categories, from, to, sales)
	s.logger.Info("period statistics computed",
		zap.String("owner", owner),
		zap.String("fecha_inicio", from.String()),
		zap.String("fecha_fin", to.String()),
		zap.Int("sales", summary.SalesCount),
	)
	return summary, nil
}
