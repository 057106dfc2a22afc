package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosingReport summarizes a period closing ("cierre mensual").
type ClosingReport struct {
	Month         int             `json:"mes"`
	Year          int             `json:"año"`
	Period        string          `json:"periodo"`
	ExcludedCount int             `json:"ventas_excluidas"`
	ExcludedValue decimal.Decimal `json:"valor_total_excluido"`
	ExcludedPaid  decimal.Decimal `json:"valor_abonado_excluido"`
	ClosedAt      Timestamp       `json:"fecha_cierre"`
}

// CloseStatisticsPeriod excludes every settled sale still counted in the
// statistics, labelling it with the closed period. month and year default to
// the current ones when zero. Sales already excluded are left alone, so
// running it again converges instead of double counting.
func (s *Service) CloseStatisticsPeriod(ctx context.Context, owner string, month, year int) (*ClosingReport, error) {
	now := s.now()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return nil, validationError(fmt.Sprintf("month %d out of range", month))
	}
	if year < 1 || year > 9999 {
		return nil, validationError(fmt.Sprintf("year %d out of range", year))
	}

	report := &ClosingReport{
		Month:         month,
		Year:          year,
		Period:        PeriodLabel(year, time.Month(month)),
		ExcludedValue: Zero,
		ExcludedPaid:  Zero,
	}

	err := s.storage.Atomic(ctx, func(repo Repository) error {
		counted := true
		candidates, err := repo.ListSales(ctx, SaleFilter{
			Owner:     owner,
			Status:    StatusClosed,
			Counted:   &counted,
			ForUpdate: true,
		})
		if err != nil {
			return err
		}

		for _, sale := range candidates {
			if !sale.excludeFromStatistics(report.Period) {
				continue
			}
			if err := repo.UpdateSale(ctx, sale); err != nil {
				return err
			}
			report.ExcludedCount++
			report.ExcludedValue = report.ExcludedValue.Add(sale.TotalValue)
			report.ExcludedPaid = report.ExcludedPaid.Add(sale.PaidAmount)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to close statistics period", zap.String("owner", owner), zap.String("period", report.Period), zap.Error(err))
		return nil, fmt.Errorf("failed to close period %s: %w", report.Period, err)
	}

	report.ClosedAt = NewTimestamp(s.now())
	s.logger.Info("statistics period closed",
		zap.String("owner", owner),
		zap.String("period", report.Period),
		zap.Int("excluded", report.ExcludedCount),
		zap.String("excluded_value", report.ExcludedValue.StringFixed(2)),
	)
	return report, nil
}
