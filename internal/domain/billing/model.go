package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InvoiceDraft         = "DRAFT"
	InvoicePending       = "PENDING"
	InvoicePartiallyPaid = "PARTIALLY_PAID"
	InvoicePaid          = "PAID"
	InvoiceOverdue       = "OVERDUE"
	InvoiceCancelled     = "CANCELLED"
	InvoiceRefunded      = "REFUNDED"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
	PaymentCancelled = "CANCELLED"
)

var validInvoiceStatuses = map[string]bool{
	InvoiceDraft: true, InvoicePending: true, InvoicePartiallyPaid: true,
	InvoicePaid: true, InvoiceOverdue: true, InvoiceCancelled: true,
	InvoiceRefunded: true,
}

var validPaymentStatuses = map[string]bool{
	PaymentPending: true, PaymentCompleted: true, PaymentFailed: true,
	PaymentRefunded: true, PaymentCancelled: true,
}

var validPaymentMethods = map[string]bool{
	"CASH": true, "CREDIT_CARD": true, "DEBIT_CARD": true, "BANK_TRANSFER": true,
	"INSURANCE": true, "CHEQUE": true, "MOBILE_PAYMENT": true, "OTHER": true,
}

// DefaultPaymentTermDays is applied when an invoice carries no due date.
const DefaultPaymentTermDays = 30

type Invoice struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Number     string          `db:"number" json:"number"`
	PatientID  uuid.UUID       `db:"patient_id" json:"patient_id"`
	Status     string          `db:"status" json:"status"`
	IssuedAt   time.Time       `db:"issued_at" json:"issued_at"`
	DueDate    time.Time       `db:"due_date" json:"due_date"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax        decimal.Decimal `db:"tax" json:"tax"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	Total      decimal.Decimal `db:"total" json:"total"`
	AmountPaid decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	BalanceDue decimal.Decimal `db:"balance_due" json:"balance_due"`
	Notes      *string         `db:"notes" json:"notes,omitempty"`
	Items      []InvoiceItem   `json:"items"`
	Payments   []Payment       `json:"payments,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

type InvoiceItem struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	InvoiceID       uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Description     string          `db:"description" json:"description"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	Total           decimal.Decimal `db:"total" json:"total"`
}

// LineTotal is unit price times quantity less the line discount.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	gross := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	discount := gross.Mul(i.DiscountPercent).Div(decimal.NewFromInt(100))
	return gross.Sub(discount)
}

type Payment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Number    string          `db:"number" json:"number"`
	InvoiceID uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    string          `db:"method" json:"method"`
	Status    string          `db:"status" json:"status"`
	Reference *string         `db:"reference" json:"reference,omitempty"`
	PaidAt    time.Time       `db:"paid_at" json:"paid_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// CalculateTotals recomputes the derived money fields from the invoice's
// items, tax and discount. Amounts already paid are preserved.
func (inv *Invoice) CalculateTotals() {
	subtotal := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Total = inv.Items[i].LineTotal()
		subtotal = subtotal.Add(inv.Items[i].Total)
	}
	inv.Subtotal = subtotal
	inv.Total = subtotal.Add(inv.Tax).Sub(inv.Discount)
	inv.BalanceDue = inv.Total.Sub(inv.AmountPaid)
}

// FinancialSummary aggregates billing activity for one calendar month.
type FinancialSummary struct {
	Year             int             `json:"year"`
	Month            time.Month      `json:"month"`
	InvoicedTotal    decimal.Decimal `json:"invoiced_total"`
	CollectedTotal   decimal.Decimal `json:"collected_total"`
	RefundedTotal    decimal.Decimal `json:"refunded_total"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	InvoiceCount     int             `json:"invoice_count"`
	PaymentCount     int             `json:"payment_count"`
}
