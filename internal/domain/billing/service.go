package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/sequence"
)

type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	patients PatientDirectory
	numbers  sequence.Source
	runTx    db.TxRunner
	now      func() time.Time
}

func NewService(invoices InvoiceRepository, payments PaymentRepository,
	patients PatientDirectory, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{
		invoices: invoices,
		payments: payments,
		patients: patients,
		numbers:  numbers,
		runTx:    runTx,
		now:      time.Now,
	}
}

// -- Invoices --

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return apperr.RequiredField("patient_id")
	}
	if len(inv.Items) == 0 {
		return apperr.Validation("an invoice requires at least one item", nil)
	}
	for i := range inv.Items {
		it := &inv.Items[i]
		fields := map[string]string{}
		if it.Description == "" {
			fields["description"] = "is required"
		}
		if it.Quantity <= 0 {
			fields["quantity"] = "must be greater than zero"
		}
		if it.UnitPrice.IsNegative() {
			fields["unit_price"] = "must not be negative"
		}
		if it.DiscountPercent.IsNegative() || it.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			fields["discount_percent"] = "must be between 0 and 100"
		}
		if len(fields) > 0 {
			return apperr.Validation("invalid invoice item", fields)
		}
	}
	if inv.Tax.IsNegative() {
		return apperr.Validation("tax must not be negative", nil)
	}
	if inv.Discount.IsNegative() {
		return apperr.Validation("discount must not be negative", nil)
	}
	if _, err := s.patients.Get(ctx, inv.PatientID); err != nil {
		return err
	}

	now := s.now()
	inv.IssuedAt = now
	if inv.DueDate.IsZero() {
		inv.DueDate = now.AddDate(0, 0, DefaultPaymentTermDays)
	}
	inv.Status = InvoicePending
	inv.AmountPaid = decimal.Zero
	inv.CalculateTotals()

	return s.runTx(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, sequence.PrefixInvoice)
		if err != nil {
			return err
		}
		inv.Number = number
		return s.invoices.CreateInvoice(ctx, inv)
	})
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetInvoiceByID(ctx, id)
}

func (s *Service) GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error) {
	return s.invoices.GetInvoiceByNumber(ctx, number)
}

func (s *Service) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.ListInvoicesByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListInvoicesByStatus(ctx context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	if !validInvoiceStatuses[status] {
		return nil, 0, apperr.Validation("invalid invoice status: "+status, nil)
	}
	return s.invoices.ListInvoicesByStatus(ctx, status, limit, offset)
}

func (s *Service) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status string) (*Invoice, error) {
	if !validInvoiceStatuses[status] {
		return nil, apperr.Validation("invalid invoice status: "+status, nil)
	}
	var inv *Invoice
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceCancelled {
			return apperr.Conflict("cannot change status of a cancelled invoice")
		}
		inv.Status = status
		return s.invoices.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == InvoicePaid {
			return apperr.Conflict("cannot cancel a paid invoice")
		}
		if inv.AmountPaid.IsPositive() {
			return apperr.Conflict("invoice has recorded payments, refund them first")
		}
		inv.Status = InvoiceCancelled
		return s.invoices.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// SweepOverdue flips pending invoices past their due date to OVERDUE and
// reports how many changed. Safe to run repeatedly.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	var n int
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.invoices.MarkOverdue(ctx, s.now())
		return err
	})
	return n, err
}

// -- Payments --

func (s *Service) AddPayment(ctx context.Context, p *Payment) error {
	if p.InvoiceID == uuid.Nil {
		return apperr.RequiredField("invoice_id")
	}
	if !p.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero", nil)
	}
	if p.Method == "" {
		p.Method = "CASH"
	}
	if !validPaymentMethods[p.Method] {
		return apperr.Validation("invalid payment method: "+p.Method, nil)
	}
	if p.Status != "" && !validPaymentStatuses[p.Status] {
		return apperr.Validation("invalid payment status: "+p.Status, nil)
	}

	p.Status = PaymentCompleted
	if p.PaidAt.IsZero() {
		p.PaidAt = s.now()
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetInvoiceForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoiceCancelled:
			return apperr.Conflict("cannot add payment to a cancelled invoice")
		case InvoicePaid:
			return apperr.Conflict("invoice is already fully paid")
		}
		if p.Amount.GreaterThan(inv.BalanceDue) {
			return apperr.Conflict("payment amount exceeds balance due")
		}

		number, err := s.numbers.Next(ctx, sequence.PrefixPayment)
		if err != nil {
			return err
		}
		p.Number = number
		if err := s.payments.CreatePayment(ctx, p); err != nil {
			return err
		}

		inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
		inv.BalanceDue = inv.Total.Sub(inv.AmountPaid)
		if inv.BalanceDue.LessThanOrEqual(decimal.Zero) {
			inv.Status = InvoicePaid
		} else {
			inv.Status = InvoicePartiallyPaid
		}
		return s.invoices.UpdateInvoice(ctx, inv)
	})
}

func (s *Service) RefundPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == PaymentRefunded {
		return nil, apperr.Conflict("payment is already refunded")
	}

	if err := s.runTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetInvoiceForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		// Re-read under the invoice lock; a concurrent refund of the same
		// payment may have committed since the check above.
		p, err = s.payments.GetPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == PaymentRefunded {
			return apperr.Conflict("payment is already refunded")
		}
		if err := s.payments.UpdatePaymentStatus(ctx, p.ID, PaymentRefunded); err != nil {
			return err
		}
		inv.AmountPaid = inv.AmountPaid.Sub(p.Amount)
		if inv.AmountPaid.IsNegative() {
			inv.AmountPaid = decimal.Zero
		}
		inv.BalanceDue = inv.Total.Sub(inv.AmountPaid)
		if inv.AmountPaid.IsZero() {
			inv.Status = InvoicePending
		} else {
			inv.Status = InvoicePartiallyPaid
		}
		return s.invoices.UpdateInvoice(ctx, inv)
	}); err != nil {
		return nil, err
	}
	p.Status = PaymentRefunded
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetPaymentByID(ctx, id)
}

// -- Reporting --

func (s *Service) MonthlySummary(ctx context.Context, year int, month time.Month) (*FinancialSummary, error) {
	if month < time.January || month > time.December {
		return nil, apperr.Validation("invalid month", nil)
	}
	return s.invoices.MonthlySummary(ctx, year, month)
}

func (s *Service) CountPendingInvoices(ctx context.Context) (int, error) {
	return s.invoices.CountInvoicesByStatus(ctx, InvoicePending)
}

func (s *Service) CountOverdueInvoices(ctx context.Context) (int, error) {
	return s.invoices.CountInvoicesByStatus(ctx, InvoiceOverdue)
}

func (s *Service) PaymentsTotalToday(ctx context.Context) (decimal.Decimal, error) {
	return s.payments.SumPaymentsOn(ctx, s.now())
}
