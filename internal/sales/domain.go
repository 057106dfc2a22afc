package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a sale. The values are the labels the
// ledger has always stored, so they are kept verbatim.
type Status string

const (
	StatusOpen   Status = "Activa"
	StatusClosed Status = "Cerrada"
)

// Valid reports whether st is one of the known statuses.
func (st Status) Valid() bool {
	return st == StatusOpen || st == StatusClosed
}

// ParseStatus accepts the stored labels as well as "open"/"closed".
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "activa", "open":
		return StatusOpen, nil
	case "cerrada", "closed":
		return StatusClosed, nil
	}
	return "", ErrInvalidStatus
}

const (
	PaymentKindInitial = "Pago inicial"
	PaymentKindDefault = "Abono"
)

// Sale represents a sale ("venta") and its payment-tracking state.
type Sale struct {
	ID                  string          `json:"id"`
	Owner               string          `json:"-"`
	Client              string          `json:"cliente"`
	TotalValue          decimal.Decimal `json:"valor_total"`
	PaidAmount          decimal.Decimal `json:"abono"`
	OutstandingBalance  decimal.Decimal `json:"saldo_pendiente"`
	Categories          []string        `json:"rubros"`
	SaleDate            Date            `json:"fecha"`
	CreatedAt           Timestamp       `json:"fecha_registro"`
	Status              Status          `json:"estado"`
	CountedInStatistics bool            `json:"incluida_en_estadisticas"`
	ClosedPeriod        *string         `json:"mes_cierre"`
	Payments            []Payment       `json:"historial_pagos"`
}

// Payment is a monetary contribution ("abono") against a sale.
type Payment struct {
	ID         string          `json:"id"`
	SaleID     string          `json:"-"`
	Amount     decimal.Decimal `json:"monto"`
	RecordedAt Timestamp       `json:"fecha"`
	Kind       string          `json:"tipo"`
}

// IsOpen reports whether the sale still accepts payments.
func (s *Sale) IsOpen() bool {
	return s.Status == StatusOpen
}

// HasCategory reports whether the sale is tagged with name.
func (s *Sale) HasCategory(name string) bool {
	for _, c := range s.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// settle recomputes the outstanding balance from total and paid amounts and
// closes the sale once nothing is left to pay.
func (s *Sale) settle() {
	s.TotalValue = RoundMoney(s.TotalValue)
	s.PaidAmount = RoundMoney(s.PaidAmount)
	s.OutstandingBalance = RoundMoney(s.TotalValue.Sub(s.PaidAmount))
	if !s.OutstandingBalance.IsPositive() {
		s.OutstandingBalance = Zero
		s.Status = StatusClosed
	}
}

// applyPayment validates p against the current state and, when accepted,
// appends it and updates the balance. On rejection the sale is untouched.
func (s *Sale) applyPayment(p Payment) error {
	if !s.IsOpen() {
		return ErrAlreadyClosed
	}
	p.Amount = RoundMoney(p.Amount)
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Amount.GreaterThan(s.OutstandingBalance) {
		return ErrExceedsBalance
	}

	s.Payments = append(s.Payments, p)
	s.PaidAmount = s.PaidAmount.Add(p.Amount)
	s.settle()
	return nil
}

// excludeFromStatistics marks a settled sale as consumed by the closing of period.
func (s *Sale) excludeFromStatistics(period string) bool {
	if s.Status != StatusClosed || !s.CountedInStatistics {
		return false
	}
	s.CountedInStatistics = false
	s.ClosedPeriod = &period
	return true
}

// PaymentsTotal sums the amounts of the recorded payments.
func (s *Sale) PaymentsTotal() decimal.Decimal {
	total := Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (s *Sale) clone() *Sale {
	c := *s
	c.Categories = append([]string(nil), s.Categories...)
	c.Payments = append([]Payment(nil), s.Payments...)
	if s.ClosedPeriod != nil {
		p := *s.ClosedPeriod
		c.ClosedPeriod = &p
	}
	return &c
}

// PeriodLabel formats the closing label for a month, e.g. "2024-03".
func PeriodLabel(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
