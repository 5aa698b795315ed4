package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// -- Mocks --

type mockStore struct {
	invoices map[uuid.UUID]*Invoice
	payments map[uuid.UUID]*Payment
}

func newMockStore() *mockStore {
	return &mockStore{
		invoices: make(map[uuid.UUID]*Invoice),
		payments: make(map[uuid.UUID]*Payment),
	}
}

func (m *mockStore) CreateInvoice(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New()
		inv.Items[i].InvoiceID = inv.ID
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockStore) GetInvoiceByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice not found")
	}
	return inv, nil
}

func (m *mockStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return m.GetInvoiceByID(ctx, id)
}

func (m *mockStore) GetInvoiceByNumber(_ context.Context, number string) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.Number == number {
			return inv, nil
		}
	}
	return nil, apperr.NotFound("invoice not found")
}

func (m *mockStore) UpdateInvoice(_ context.Context, inv *Invoice) error {
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockStore) ListInvoicesByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (m *mockStore) ListInvoicesByStatus(_ context.Context, status string, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		if inv.Status == status {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (m *mockStore) MarkOverdue(_ context.Context, asOf time.Time) (int, error) {
	n := 0
	for _, inv := range m.invoices {
		if inv.Status == InvoicePending && inv.DueDate.Before(asOf) {
			inv.Status = InvoiceOverdue
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CountInvoicesByStatus(_ context.Context, status string) (int, error) {
	n := 0
	for _, inv := range m.invoices {
		if inv.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) MonthlySummary(_ context.Context, year int, month time.Month) (*FinancialSummary, error) {
	s := &FinancialSummary{Year: year, Month: month}
	for _, inv := range m.invoices {
		if inv.Status == InvoiceCancelled {
			continue
		}
		if inv.IssuedAt.Year() != year || inv.IssuedAt.Month() != month {
			continue
		}
		s.InvoicedTotal = s.InvoicedTotal.Add(inv.Total)
		s.OutstandingTotal = s.OutstandingTotal.Add(inv.BalanceDue)
		s.InvoiceCount++
	}
	for _, p := range m.payments {
		if p.PaidAt.Year() != year || p.PaidAt.Month() != month {
			continue
		}
		switch p.Status {
		case PaymentCompleted:
			s.CollectedTotal = s.CollectedTotal.Add(p.Amount)
		case PaymentRefunded:
			s.RefundedTotal = s.RefundedTotal.Add(p.Amount)
		}
		s.PaymentCount++
	}
	return s, nil
}

func (m *mockStore) CreatePayment(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	m.payments[p.ID] = p
	return nil
}

func (m *mockStore) GetPaymentByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment not found")
	}
	return p, nil
}

func (m *mockStore) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.payments[id]
	if !ok {
		return apperr.NotFound("payment not found")
	}
	p.Status = status
	return nil
}

func (m *mockStore) SumPaymentsOn(_ context.Context, day time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.Status == PaymentCompleted {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

type mockPatients struct {
	known map[uuid.UUID]bool
}

func (m *mockPatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !m.known[id] {
		return nil, apperr.NotFound("patient not found")
	}
	return &patient.Patient{ID: id, Active: true}, nil
}

type mockNumbers struct {
	n int64
}

func (m *mockNumbers) Next(_ context.Context, prefix string) (string, error) {
	m.n++
	return fmt.Sprintf("%s-20240115-%05d", prefix, m.n), nil
}

func newService(patientIDs ...uuid.UUID) (*Service, *mockStore) {
	store := newMockStore()
	known := make(map[uuid.UUID]bool)
	for _, id := range patientIDs {
		known[id] = true
	}
	svc := NewService(store, store, &mockPatients{known: known}, &mockNumbers{}, db.PassthroughTx)
	return svc, store
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedInvoice(t *testing.T, svc *Service, pid uuid.UUID) *Invoice {
	t.Helper()
	inv := &Invoice{
		PatientID: pid,
		Tax:       money("9.00"),
		Items: []InvoiceItem{{
			Description:     "Consultation",
			Quantity:        2,
			UnitPrice:       money("50.00"),
			DiscountPercent: money("10"),
		}},
	}
	if err := svc.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return inv
}

// -- Tests --

func TestCreateInvoice_CalculatesTotals(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	inv := seedInvoice(t, svc, pid)

	if inv.Number != "INV-20240115-00001" {
		t.Errorf("unexpected number %q", inv.Number)
	}
	if inv.Status != InvoicePending {
		t.Errorf("expected PENDING, got %s", inv.Status)
	}
	if !inv.Subtotal.Equal(money("90.00")) {
		t.Errorf("expected subtotal 90.00, got %s", inv.Subtotal)
	}
	if !inv.Total.Equal(money("99.00")) {
		t.Errorf("expected total 99.00, got %s", inv.Total)
	}
	if !inv.BalanceDue.Equal(money("99.00")) {
		t.Errorf("expected balance 99.00, got %s", inv.BalanceDue)
	}
}

func TestCreateInvoice_RequiresItems(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	err := svc.CreateInvoice(context.Background(), &Invoice{PatientID: pid})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddPayment_FullPayment(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("99.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Number != "PAY-20240115-00002" {
		t.Errorf("unexpected payment number %q", p.Number)
	}
	if p.Status != PaymentCompleted {
		t.Errorf("expected COMPLETED, got %s", p.Status)
	}
	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != InvoicePaid || !got.BalanceDue.IsZero() {
		t.Errorf("expected PAID with zero balance, got %s %s", got.Status, got.BalanceDue)
	}

	again := &Payment{InvoiceID: inv.ID, Amount: money("1.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), again); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on paid invoice, got %v", err)
	}
}

func TestAddPayment_PartialThenRejectOverpay(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("40.00"), Method: "CREDIT_CARD"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != InvoicePartiallyPaid || !got.BalanceDue.Equal(money("59.00")) {
		t.Errorf("expected PARTIALLY_PAID 59.00, got %s %s", got.Status, got.BalanceDue)
	}

	over := &Payment{InvoiceID: inv.ID, Amount: money("60.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), over); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on overpayment, got %v", err)
	}
}

func TestAddPayment_RejectsUnknownStatus(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("10.00"), Method: "CASH", Status: "SETTLED"}
	if err := svc.AddPayment(context.Background(), p); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddPayment_RejectsCancelledInvoice(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	if _, err := svc.CancelInvoice(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := &Payment{InvoiceID: inv.ID, Amount: money("10.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRefundPayment(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("99.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refunded, err := svc.RefundPayment(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.Status != PaymentRefunded {
		t.Errorf("expected REFUNDED, got %s", refunded.Status)
	}
	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if got.Status != InvoicePending || !got.AmountPaid.IsZero() {
		t.Errorf("expected PENDING with nothing paid, got %s %s", got.Status, got.AmountPaid)
	}

	if _, err := svc.RefundPayment(context.Background(), p.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on double refund, got %v", err)
	}
}

// racingPayments simulates a concurrent refund committing between the
// service's first read of the payment and its re-read under the invoice lock.
type racingPayments struct {
	*mockStore
	reads int
}

func (r *racingPayments) GetPaymentByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	r.reads++
	p, err := r.mockStore.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.reads == 1 {
		snapshot := *p
		p.Status = PaymentRefunded
		return &snapshot, nil
	}
	return p, nil
}

func TestRefundPayment_RecheckedUnderLock(t *testing.T) {
	pid := uuid.New()
	store := newMockStore()
	svc := NewService(store, &racingPayments{mockStore: store},
		&mockPatients{known: map[uuid.UUID]bool{pid: true}}, &mockNumbers{}, db.PassthroughTx)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("99.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.RefundPayment(context.Background(), p.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on lost refund race, got %v", err)
	}
	got, _ := svc.GetInvoice(context.Background(), inv.ID)
	if !got.AmountPaid.Equal(money("99.00")) {
		t.Errorf("expected paid amount untouched, got %s", got.AmountPaid)
	}
}

func TestCancelInvoice_RejectsWithPayments(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("10.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CancelInvoice(context.Background(), inv.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSweepOverdue_Idempotent(t *testing.T) {
	pid := uuid.New()
	svc, store := newService(pid)
	inv := seedInvoice(t, svc, pid)
	store.invoices[inv.ID].DueDate = time.Now().AddDate(0, 0, -1)
	fresh := seedInvoice(t, svc, pid)

	n, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invoice swept, got %d", n)
	}
	if store.invoices[inv.ID].Status != InvoiceOverdue {
		t.Errorf("expected OVERDUE, got %s", store.invoices[inv.ID].Status)
	}
	if store.invoices[fresh.ID].Status != InvoicePending {
		t.Errorf("fresh invoice must stay PENDING, got %s", store.invoices[fresh.ID].Status)
	}

	n, err = svc.SweepOverdue(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second sweep must be a no-op, got %d (%v)", n, err)
	}
}

func TestMonthlySummary(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)
	inv := seedInvoice(t, svc, pid)

	p := &Payment{InvoiceID: inv.ID, Amount: money("50.00"), Method: "CASH"}
	if err := svc.AddPayment(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now()
	s, err := svc.MonthlySummary(context.Background(), now.Year(), now.Month())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.InvoiceCount != 1 || !s.InvoicedTotal.Equal(money("99.00")) {
		t.Errorf("unexpected invoiced: %d %s", s.InvoiceCount, s.InvoicedTotal)
	}
	if !s.CollectedTotal.Equal(money("50.00")) {
		t.Errorf("expected 50.00 collected, got %s", s.CollectedTotal)
	}
	if !s.OutstandingTotal.Equal(money("49.00")) {
		t.Errorf("expected 49.00 outstanding, got %s", s.OutstandingTotal)
	}
}
