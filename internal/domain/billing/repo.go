package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetInvoiceForUpdate locks the invoice row; call inside a transaction.
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	ListInvoicesByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
	CountInvoicesByStatus(ctx context.Context, status string) (int, error)
	MonthlySummary(ctx context.Context, year int, month time.Month) (*FinancialSummary, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error
	SumPaymentsOn(ctx context.Context, day time.Time) (decimal.Decimal, error)
}
