package sales

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a sale does not exist or belongs to another user.
var ErrNotFound = errors.New("sale not found")

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// SaleFilter narrows ListSales. Owner is mandatory; zero values mean "any".
type SaleFilter struct {
	Owner          string
	Status         Status
	Counted        *bool
	From, To       Date
	ClientContains string
	// ForUpdate asks the store to lock the matched rows until the transaction ends.
	ForUpdate bool
}

// FoldClient is the case-insensitive form client searches compare on. Stores
// keep it next to the client name so every backend folds the same way.
func FoldClient(name string) string {
	return strings.ToLower(name)
}

func (f SaleFilter) matches(s *Sale) bool {
	if s.Owner != f.Owner {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Counted != nil && s.CountedInStatistics != *f.Counted {
		return false
	}
	if !f.From.IsZero() && s.SaleDate.Compare(f.From) < 0 {
		return false
	}
	if !f.To.IsZero() && s.SaleDate.Compare(f.To) > 0 {
		return false
	}
	if f.ClientContains != "" && !strings.Contains(FoldClient(s.Client), FoldClient(f.ClientContains)) {
		return false
	}
	return true
}

// Repository is the set of ledger reads and writes available inside a transaction.
// Every lookup is scoped by owner.
type Repository interface {
	// CreateSale persists the sale together with its categories and payments.
	CreateSale(ctx context.Context, sale *Sale) error
	FindSale(ctx context.Context, owner, id string, forUpdate bool) (*Sale, error)
	// ListSales returns matching sales, newest sale date first, with categories and payments loaded.
	ListSales(ctx context.Context, filter SaleFilter) ([]*Sale, error)
	AddPayment(ctx context.Context, payment *Payment) error
	// UpdateSale writes the mutable fields: paid, outstanding, status, counted flag and closed period.
	UpdateSale(ctx context.Context, sale *Sale) error
	// DeleteSale removes the sale, its payments and its categories. It reports false when nothing matched.
	DeleteSale(ctx context.Context, owner, id string) (bool, error)
}

// Storage is the main interface for our sales storage layer. Atomic runs fn in a
// single transaction: it commits when fn returns nil and rolls back otherwise.
type Storage interface {
	Atomic(ctx context.Context, fn func(Repository) error) error
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	mu sync.Mutex
	m  map[string]*Sale
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Sale{},
	}
}

// Atomic serializes transactions and works on a copy of the data, which only
// replaces the live map when fn succeeds.
func (l *LocalStorage) Atomic(ctx context.Context, fn func(Repository) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	work := &localTx{m: make(map[string]*Sale, len(l.m))}
	for id, s := range l.m {
		work.m[id] = s.clone()
	}
	if err := fn(work); err != nil {
		return err
	}
	l.m = work.m
	return nil
}

type localTx struct {
	m map[string]*Sale
}

func (t *localTx) CreateSale(_ context.Context, sale *Sale) error {
	if sale.ID == "" {
		return ErrEmptyID
	}
	t.m[sale.ID] = sale.clone()
	return nil
}

func (t *localTx) FindSale(_ context.Context, owner, id string, _ bool) (*Sale, error) {
	s, ok := t.m[id]
	if !ok || s.Owner != owner {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (t *localTx) ListSales(_ context.Context, filter SaleFilter) ([]*Sale, error) {
	sales := make([]*Sale, 0, len(t.m))
	for _, s := range t.m {
		if filter.matches(s) {
			sales = append(sales, s.clone())
		}
	}
	sort.Slice(sales, func(i, j int) bool {
		if c := sales[i].SaleDate.Compare(sales[j].SaleDate); c != 0 {
			return c > 0
		}
		return sales[i].CreatedAt.After(sales[j].CreatedAt.Time)
	})
	return sales, nil
}

func (t *localTx) AddPayment(_ context.Context, payment *Payment) error {
	s, ok := t.m[payment.SaleID]
	if !ok {
		return ErrNotFound
	}
	s.Payments = append(s.Payments, *payment)
	return nil
}

func (t *localTx) UpdateSale(_ context.Context, sale *Sale) error {
	s, ok := t.m[sale.ID]
	if !ok || s.Owner != sale.Owner {
		return ErrNotFound
	}
	s.PaidAmount = sale.PaidAmount
	s.OutstandingBalance = sale.OutstandingBalance
	s.Status = sale.Status
	s.CountedInStatistics = sale.CountedInStatistics
	s.ClosedPeriod = sale.ClosedPeriod
	return nil
}

func (t *localTx) DeleteSale(_ context.Context, owner, id string) (bool, error) {
	s, ok := t.m[id]
	if !ok || s.Owner != owner {
		return false, nil
	}
	delete(t.m, id)
	return true, nil
}
