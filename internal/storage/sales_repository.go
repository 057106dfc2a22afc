package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ventas/internal/sales"

	"github.com/shopspring/decimal"
)

const saleColumns = `id, owner, client, total_value, paid_amount, outstanding_balance,
	sale_date, created_at, status, counted_in_statistics, closed_period`

// salesRepository implements sales.Repository on top of one transaction.
type salesRepository struct {
	tx      *sql.Tx
	dialect Dialect
}

func (r *salesRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.tx.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *salesRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.tx.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func money(d decimal.Decimal) string {
	return sales.RoundMoney(d).StringFixed(2)
}

func (r *salesRepository) CreateSale(ctx context.Context, sale *sales.Sale) error {
	if sale.ID == "" {
		return sales.ErrEmptyID
	}

	_, err := r.exec(ctx, `INSERT INTO sales (`+saleColumns+`, client_folded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.Owner, sale.Client,
		money(sale.TotalValue), money(sale.PaidAmount), money(sale.OutstandingBalance),
		sale.SaleDate.String(), sale.CreatedAt.Stored(), string(sale.Status),
		sale.CountedInStatistics, nullString(sale.ClosedPeriod), sales.FoldClient(sale.Client),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for i, category := range sale.Categories {
		_, err := r.exec(ctx, `INSERT INTO sale_categories (sale_id, position, category) VALUES (?, ?, ?)`,
			sale.ID, i+1, category)
		if err != nil {
			return fmt.Errorf("insert sale category %s: %w", category, err)
		}
	}

	for i := range sale.Payments {
		if err := r.AddPayment(ctx, &sale.Payments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *salesRepository) FindSale(ctx context.Context, owner, id string, forUpdate bool) (*sales.Sale, error) {
	rows, err := r.query(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ? AND owner = ?`+r.dialect.lockClause(forUpdate),
		id, owner)
	if err != nil {
		return nil, fmt.Errorf("select sale: %w", err)
	}
	found, err := scanSales(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, sales.ErrNotFound
	}

	if err := r.attachDetails(ctx, found, "s.id = ?", id); err != nil {
		return nil, err
	}
	return found[0], nil
}

func (r *salesRepository) ListSales(ctx context.Context, filter sales.SaleFilter) ([]*sales.Sale, error) {
	var (
		where = []string{"owner = ?"}
		args  = []any{filter.Owner}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Counted != nil {
		where = append(where, "counted_in_statistics = ?")
		args = append(args, *filter.Counted)
	}
	if !filter.From.IsZero() {
		where = append(where, "sale_date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "sale_date <= ?")
		args = append(args, filter.To.String())
	}
	if q := strings.TrimSpace(filter.ClientContains); q != "" {
		where = append(where, `client_folded LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(sales.FoldClient(q))+"%")
	}

	query := `SELECT ` + saleColumns + ` FROM sales WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY sale_date DESC, created_at DESC` + r.dialect.lockClause(filter.ForUpdate)

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	found, err := scanSales(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return found, nil
	}

	if err := r.attachDetails(ctx, found, "s.owner = ?", filter.Owner); err != nil {
		return nil, err
	}
	return found, nil
}

func (r *salesRepository) AddPayment(ctx context.Context, payment *sales.Payment) error {
	_, err := r.exec(ctx, `INSERT INTO payments (id, sale_id, position, amount, recorded_at, kind)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM payments WHERE sale_id = ?), ?, ?, ?)`,
		payment.ID, payment.SaleID, payment.SaleID, money(payment.Amount), payment.RecordedAt.Stored(), payment.Kind)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *salesRepository) UpdateSale(ctx context.Context, sale *sales.Sale) error {
	res, err := r.exec(ctx, `UPDATE sales
		SET paid_amount = ?, outstanding_balance = ?, status = ?, counted_in_statistics = ?, closed_period = ?
		WHERE id = ? AND owner = ?`,
		money(sale.PaidAmount), money(sale.OutstandingBalance), string(sale.Status),
		sale.CountedInStatistics, nullString(sale.ClosedPeriod),
		sale.ID, sale.Owner,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sales.ErrNotFound
	}
	return nil
}

// DeleteSale removes the children explicitly as well, so no orphan survives
// even on a connection where foreign keys are not enforced.
func (r *salesRepository) DeleteSale(ctx context.Context, owner, id string) (bool, error) {
	res, err := r.exec(ctx, `DELETE FROM sales WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return false, fmt.Errorf("delete sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete sale: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := r.exec(ctx, `DELETE FROM payments WHERE sale_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete payments: %w", err)
	}
	if _, err := r.exec(ctx, `DELETE FROM sale_categories WHERE sale_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete sale categories: %w", err)
	}
	return true, nil
}

// attachDetails loads categories and payments for the given sales with one
// query each, scoped by the join predicate.
func (r *salesRepository) attachDetails(ctx context.Context, found []*sales.Sale, scope string, arg any) error {
	byID := make(map[string]*sales.Sale, len(found))
	for _, s := range found {
		s.Categories = []string{}
		s.Payments = []sales.Payment{}
		byID[s.ID] = s
	}

	rows, err := r.query(ctx, `SELECT sc.sale_id, sc.category
		FROM sale_categories sc JOIN sales s ON s.id = sc.sale_id
		WHERE `+scope+` ORDER BY sc.sale_id, sc.position`, arg)
	if err != nil {
		return fmt.Errorf("select sale categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var saleID, category string
		if err := rows.Scan(&saleID, &category); err != nil {
			return fmt.Errorf("scan sale category: %w", err)
		}
		if s, ok := byID[saleID]; ok {
			s.Categories = append(s.Categories, category)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sale categories: %w", err)
	}
	rows.Close()

	rows, err = r.query(ctx, `SELECT p.id, p.sale_id, p.amount, p.recorded_at, p.kind
		FROM payments p JOIN sales s ON s.id = p.sale_id
		WHERE `+scope+` ORDER BY p.sale_id, p.position`, arg)
	if err != nil {
		return fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p          sales.Payment
			recordedAt string
		)
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &recordedAt, &p.Kind); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if p.RecordedAt, err = sales.ParseTimestamp(recordedAt); err != nil {
			return fmt.Errorf("payment %s: %w", p.ID, err)
		}
		if s, ok := byID[p.SaleID]; ok {
			s.Payments = append(s.Payments, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}

func scanSales(rows *sql.Rows) ([]*sales.Sale, error) {
	defer rows.Close()

	found := []*sales.Sale{}
	for rows.Next() {
		var (
			s            sales.Sale
			status       string
			saleDate     string
			createdAt    string
			closedPeriod sql.NullString
		)
		err := rows.Scan(&s.ID, &s.Owner, &s.Client, &s.TotalValue, &s.PaidAmount, &s.OutstandingBalance,
			&saleDate, &createdAt, &status, &s.CountedInStatistics, &closedPeriod)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}

		s.Status = sales.Status(status)
		if s.SaleDate, err = sales.ParseDate(saleDate); err != nil {
			return nil, fmt.Errorf("sale %s: %w", s.ID, err)
		}
		if s.CreatedAt, err = sales.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("sale %s: %w", s.ID, err)
		}
		if closedPeriod.Valid {
			period := closedPeriod.String
			s.ClosedPeriod = &period
		}
		found = append(found, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return found, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ sales.Repository = (*salesRepository)(nil)
var _ sales.Storage = (*Store)(nil)
