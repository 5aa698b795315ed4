package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG backs both billing repositories with one pgx store.
func NewRepoPG(pool *pgxpool.Pool) *repoPG { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, number, patient_id, status, issued_at, due_date, subtotal, tax,
	discount, total, amount_paid, balance_due, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.Status, &inv.IssuedAt,
		&inv.DueDate, &inv.Subtotal, &inv.Tax, &inv.Discount, &inv.Total,
		&inv.AmountPaid, &inv.BalanceDue, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invoice not found")
	}
	return &inv, err
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, number, patient_id, status, issued_at, due_date,
			subtotal, tax, discount, total, amount_paid, balance_due, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inv.ID, inv.Number, inv.PatientID, inv.Status, inv.IssuedAt, inv.DueDate,
		inv.Subtotal, inv.Tax, inv.Discount, inv.Total, inv.AmountPaid, inv.BalanceDue,
		inv.Notes)
	if err != nil {
		return err
	}
	for i := range inv.Items {
		it := &inv.Items[i]
		it.ID = uuid.New()
		it.InvoiceID = inv.ID
		_, err = r.conn(ctx).Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price,
				discount_percent, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.InvoiceID, it.Description, it.Quantity, it.UnitPrice,
			it.DiscountPercent, it.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE number = $1`, number))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) loadDetails(ctx context.Context, inv *Invoice) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, discount_percent, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY description`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity,
			&it.UnitPrice, &it.DiscountPercent, &it.Total); err != nil {
			return err
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	prows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE invoice_id = $1 ORDER BY paid_at`, inv.ID)
	if err != nil {
		return err
	}
	defer prows.Close()
	for prows.Next() {
		p, err := scanPayment(prows)
		if err != nil {
			return err
		}
		inv.Payments = append(inv.Payments, *p)
	}
	return prows.Err()
}

func (r *repoPG) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status=$2, due_date=$3, subtotal=$4, tax=$5, discount=$6,
			total=$7, amount_paid=$8, balance_due=$9, notes=$10, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.DueDate, inv.Subtotal, inv.Tax, inv.Discount,
		inv.Total, inv.AmountPaid, inv.BalanceDue, inv.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invoice not found")
	}
	return nil
}

func (r *repoPG) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return r.listInvoices(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *repoPG) ListInvoicesByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	return r.listInvoices(ctx, `status = $1`, status, limit, offset)
}

func (r *repoPG) listInvoices(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE `+where+
			` ORDER BY issued_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, inv := range invoices {
		if err := r.loadDetails(ctx, inv); err != nil {
			return nil, 0, err
		}
	}
	return invoices, total, nil
}

func (r *repoPG) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND due_date < $3`,
		InvoiceOverdue, InvoicePending, asOf)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) CountInvoicesByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *repoPG) MonthlySummary(ctx context.Context, year int, month time.Month) (*FinancialSummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	s := &FinancialSummary{Year: year, Month: month}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COALESCE(SUM(balance_due), 0), COUNT(*)
		FROM invoices
		WHERE issued_at >= $1 AND issued_at < $2 AND status <> $3`,
		start, end, InvoiceCancelled).
		Scan(&s.InvoicedTotal, &s.OutstandingTotal, &s.InvoiceCount)
	if err != nil {
		return nil, err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = $3), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = $4), 0),
			COUNT(*)
		FROM payments
		WHERE paid_at >= $1 AND paid_at < $2`,
		start, end, PaymentCompleted, PaymentRefunded).
		Scan(&s.CollectedTotal, &s.RefundedTotal, &s.PaymentCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// -- Payments --

const paymentCols = `id, number, invoice_id, amount, method, status, reference, paid_at, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Number, &p.InvoiceID, &p.Amount, &p.Method, &p.Status,
		&p.Reference, &p.PaidAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment not found")
	}
	return &p, err
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, number, invoice_id, amount, method, status, reference, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Number, p.InvoiceID, p.Amount, p.Method, p.Status, p.Reference, p.PaidAt)
	return err
}

func (r *repoPG) GetPaymentByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r *repoPG) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment not found")
	}
	return nil
}

func (r *repoPG) SumPaymentsOn(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE status = $1 AND paid_at >= $2 AND paid_at < $3`,
		PaymentCompleted, start, start.AddDate(0, 0, 1)).Scan(&sum)
	return sum, err
}
