package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrValidation marks bad input: missing client, no valid category, negative amounts.
	ErrValidation = errors.New("validation error")
	// ErrInvalidState marks an operation the sale's current state does not allow.
	ErrInvalidState = errors.New("invalid sale state")

	// Error para estados inválidos
	ErrInvalidStatus = fmt.Errorf("%w: invalid status value", ErrValidation)

	ErrInvalidAmount  = fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	ErrAmountRange    = fmt.Errorf("%w: amount out of range", ErrValidation)
	ErrAlreadyClosed  = fmt.Errorf("%w: sale is already closed", ErrInvalidState)
	ErrExceedsBalance = fmt.Errorf("%w: payment exceeds outstanding balance", ErrInvalidState)
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Service provides the ledger operations on a Storage backend. Every operation
// runs in one storage transaction and is scoped to the calling owner.
type Service struct {
	storage    Storage
	logger     *zap.Logger
	categories *Vocabulary
	now        func() time.Time
}

// NewSale carries the input of RegisterSale.
type NewSale struct {
	Client         string
	TotalValue     decimal.Decimal
	InitialPayment decimal.Decimal
	Categories     []string
	// SaleDate is YYYY-MM-DD; blank means today.
	SaleDate string
}

// ListOptions filters ListSales.
type ListOptions struct {
	Query   string
	Status  Status
	Counted *bool
}

// NewService creates a new Service. A nil logger falls back to a no-op logger
// and a nil vocabulary to DefaultVocabulary.
func NewService(storage Storage, logger *zap.Logger, categories *Vocabulary) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if categories == nil {
		categories = DefaultVocabulary()
	}

	return &Service{
		storage:    storage,
		logger:     logger,
		categories: categories,
		now:        time.Now,
	}
}

// Categories returns the vocabulary shared by validation and statistics.
func (s *Service) Categories() *Vocabulary {
	return s.categories
}

// RegisterSale records a new sale and, when there is an initial payment, its
// first payment, all in one transaction.
func (s *Service) RegisterSale(ctx context.Context, owner string, in NewSale) (*Sale, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, validationError("owner is required")
	}
	client := strings.TrimSpace(in.Client)
	if client == "" {
		return nil, validationError("client is required")
	}
	if len(in.Categories) == 0 {
		return nil, validationError("at least one category is required")
	}
	categories := s.categories.Filter(in.Categories)
	if len(categories) == 0 {
		return nil, validationError("none of the selected categories is valid")
	}

	if !InRange(in.TotalValue) || !InRange(in.InitialPayment) {
		return nil, ErrAmountRange
	}
	total := RoundMoney(in.TotalValue)
	initial := RoundMoney(in.InitialPayment)
	if total.IsNegative() || initial.IsNegative() {
		return nil, validationError("amounts cannot be negative")
	}

	now := s.now()
	saleDate := DateOf(now)
	if raw := strings.TrimSpace(in.SaleDate); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		saleDate = d
	}

	sale := &Sale{
		ID:                  uuid.NewString(),
		Owner:               owner,
		Client:              client,
		TotalValue:          total,
		PaidAmount:          initial,
		Categories:          categories,
		SaleDate:            saleDate,
		CreatedAt:           NewTimestamp(now),
		Status:              StatusOpen,
		CountedInStatistics: true,
	}
	sale.settle()
	if initial.IsPositive() {
		sale.Payments = []Payment{{
			ID:         uuid.NewString(),
			SaleID:     sale.ID,
			Amount:     initial,
			RecordedAt: sale.CreatedAt,
			Kind:       PaymentKindInitial,
		}}
	}

	err := s.storage.Atomic(ctx, func(repo Repository) error {
		return repo.CreateSale(ctx, sale)
	})
	if err != nil {
		s.logger.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to save sale: %w", err)
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.String("owner", owner),
		zap.String("client", sale.Client),
		zap.String("total_value", sale.TotalValue.StringFixed(2)),
		zap.String("paid_amount", sale.PaidAmount.StringFixed(2)),
		zap.Strings("categories", sale.Categories),
	)
	return sale, nil
}

// ApplyPayment records a payment against an open sale. The sale row is re-read
// under lock inside the transaction so concurrent payments cannot lose updates.
func (s *Service) ApplyPayment(ctx context.Context, owner, saleID string, amount decimal.Decimal, kind string) (*Sale, error) {
	if !InRange(amount) {
		s.logger.Warn("payment rejected", zap.String("sale_id", saleID), zap.String("owner", owner), zap.Error(ErrAmountRange))
		return nil, ErrAmountRange
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = PaymentKindDefault
	}

	var updated *Sale
	err := s.storage.Atomic(ctx, func(repo Repository) error {
		sale, err := repo.FindSale(ctx, owner, saleID, true)
		if err != nil {
			return err
		}

		payment := Payment{
			ID:         uuid.NewString(),
			SaleID:     sale.ID,
			Amount:     amount,
			RecordedAt: NewTimestamp(s.now()),
			Kind:       kind,
		}
		if err := sale.applyPayment(payment); err != nil {
			return err
		}
		payment = sale.Payments[len(sale.Payments)-1]

		if err := repo.AddPayment(ctx, &payment); err != nil {
			return err
		}
		if err := repo.UpdateSale(ctx, sale); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidState) {
			s.logger.Warn("payment rejected",
				zap.String("sale_id", saleID),
				zap.String("owner", owner),
				zap.String("amount", amount.String()),
				zap.Error(err),
			)
			return nil, err
		}
		s.logger.Error("failed to apply payment", zap.String("sale_id", saleID), zap.Error(err))
		return nil, fmt.Errorf("failed to apply payment: %w", err)
	}

	s.logger.Info("payment applied",
		zap.String("sale_id", updated.ID),
		zap.String("owner", owner),
		zap.String("amount", RoundMoney(amount).StringFixed(2)),
		zap.String("outstanding_balance", updated.OutstandingBalance.StringFixed(2)),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// DeleteSale removes an owned sale with its payments and categories. It
// returns false, without error, when there was nothing to delete.
func (s *Service) DeleteSale(ctx context.Context, owner, saleID string) (bool, error) {
	var deleted bool
	err := s.storage.Atomic(ctx, func(repo Repository) error {
		var err error
		deleted, err = repo.DeleteSale(ctx, owner, saleID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to delete sale", zap.String("sale_id", saleID), zap.Error(err))
		return false, fmt.Errorf("failed to delete sale: %w", err)
	}

	if deleted {
		s.logger.Info("sale deleted", zap.String("sale_id", saleID), zap.String("owner", owner))
	}
	return deleted, nil
}

// GetSale returns an owned sale with its payment history.
func (s *Service) GetSale(ctx context.Context, owner, saleID string) (*Sale, error) {
	var sale *Sale
	err := s.storage.Atomic(ctx, func(repo Repository) error {
		var err error
		sale, err = repo.FindSale(ctx, owner, saleID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales returns the owner's sales, newest first.
func (s *Service) ListSales(ctx context.Context, owner string, opts ListOptions) ([]*Sale, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.list(ctx, SaleFilter{
		Owner:          owner,
		Status:         opts.Status,
		Counted:        opts.Counted,
		ClientContains: strings.TrimSpace(opts.Query),
	})
}

// ListPendingClosing returns the settled sales the next closing would exclude.
func (s *Service) ListPendingClosing(ctx context.Context, owner string) ([]*Sale, error) {
	counted := true
	return s.list(ctx, SaleFilter{Owner: owner, Status: StatusClosed, Counted: &counted})
}

// ListExcluded returns the sales removed from statistics by earlier closings.
func (s *Service) ListExcluded(ctx context.Context, owner string) ([]*Sale, error) {
	counted := false
	return s.list(ctx, SaleFilter{Owner: owner, Counted: &counted})
}

func (s *Service) list(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	var sales []*Sale
	err := s.storage.Atomic(ctx, func(repo Repository) error {
		var err error
		sales, err = repo.ListSales(ctx, filter)
		return err
	})
	if err != nil {
		s.logger.Error("failed to list sales", zap.String("owner", filter.Owner), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve sales: %w", err)
	}
	return sales, nil
}
