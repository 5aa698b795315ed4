package pharmacy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StockAvailable  = "AVAILABLE"
	StockLow        = "LOW_STOCK"
	StockOut        = "OUT_OF_STOCK"
	StockExpired    = "EXPIRED"
	StockReserved   = "RESERVED"
	StockQuarantine = "QUARANTINE"
)

const (
	DispensingPending   = "PENDING"
	DispensingDispensed = "DISPENSED"
	DispensingPartial   = "PARTIALLY_DISPENSED"
	DispensingReturned  = "RETURNED"
	DispensingCancelled = "CANCELLED"
)

const (
	AlertLowStock     = "LOW_STOCK"
	AlertOutOfStock   = "OUT_OF_STOCK"
	AlertExpired      = "EXPIRED"
	AlertExpiringSoon = "EXPIRING_SOON"
)

var validForms = map[string]bool{
	"TABLET": true, "CAPSULE": true, "SYRUP": true, "INJECTION": true,
	"CREAM": true, "OINTMENT": true, "DROPS": true, "INHALER": true,
	"PATCH": true, "SUPPOSITORY": true, "OTHER": true,
}

type Medication struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	Code                 string          `db:"code" json:"code"`
	Name                 string          `db:"name" json:"name"`
	GenericName          *string         `db:"generic_name" json:"generic_name,omitempty"`
	Form                 string          `db:"form" json:"form"`
	Strength             *string         `db:"strength" json:"strength,omitempty"`
	Manufacturer         *string         `db:"manufacturer" json:"manufacturer,omitempty"`
	UnitPrice            decimal.Decimal `db:"unit_price" json:"unit_price"`
	ReorderLevel         int             `db:"reorder_level" json:"reorder_level"`
	RequiresPrescription bool            `db:"requires_prescription" json:"requires_prescription"`
	ControlledSubstance  bool            `db:"controlled_substance" json:"controlled_substance"`
	Active               bool            `db:"active" json:"active"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

type Supplier struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ContactName *string   `db:"contact_name" json:"contact_name,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryBatch is one received lot of a medication.
type InventoryBatch struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	MedicationID uuid.UUID       `db:"medication_id" json:"medication_id"`
	SupplierID   *uuid.UUID      `db:"supplier_id" json:"supplier_id,omitempty"`
	BatchNumber  string          `db:"batch_number" json:"batch_number"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Reserved     int             `db:"reserved" json:"reserved"`
	ExpiryDate   time.Time       `db:"expiry_date" json:"expiry_date"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Location     *string         `db:"location" json:"location,omitempty"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Available is the quantity not held back by reservations.
func (b InventoryBatch) Available() int {
	return b.Quantity - b.Reserved
}

// DeriveStockStatus classifies a batch from its quantities and expiry.
// Quarantined batches keep their status until released by hand.
func DeriveStockStatus(b InventoryBatch, reorderLevel int, today time.Time) string {
	if b.Status == StockQuarantine {
		return StockQuarantine
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if b.ExpiryDate.Before(day) {
		return StockExpired
	}
	switch avail := b.Available(); {
	case avail == 0:
		return StockOut
	case avail <= reorderLevel:
		return StockLow
	default:
		return StockAvailable
	}
}

type StockAlert struct {
	Type           string     `json:"type"`
	MedicationID   uuid.UUID  `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	BatchID        uuid.UUID  `json:"batch_id"`
	BatchNumber    string     `json:"batch_number"`
	Available      int        `json:"available"`
	ReorderLevel   int        `json:"reorder_level"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// Dispensing records medication handed out against a prescription item.
type Dispensing struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PrescriptionID     uuid.UUID `db:"prescription_id" json:"prescription_id"`
	PrescriptionItemID uuid.UUID `db:"prescription_item_id" json:"prescription_item_id"`
	MedicationID       uuid.UUID `db:"medication_id" json:"medication_id"`
	BatchID            uuid.UUID `db:"batch_id" json:"batch_id"`
	Quantity           int       `db:"quantity" json:"quantity"`
	Status             string    `db:"status" json:"status"`
	DispensedBy        uuid.UUID `db:"dispensed_by" json:"dispensed_by"`
	DispensedAt        time.Time `db:"dispensed_at" json:"dispensed_at"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
}
