package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive             = "ACTIVE"
	StatusDispensed          = "DISPENSED"
	StatusPartiallyDispensed = "PARTIALLY_DISPENSED"
	StatusCancelled          = "CANCELLED"
	StatusExpired            = "EXPIRED"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusDispensed: true, StatusPartiallyDispensed: true,
	StatusCancelled: true, StatusExpired: true,
}

type Prescription struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	Number         string             `db:"number" json:"number"`
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	RecordID       *uuid.UUID         `db:"record_id" json:"record_id,omitempty"`
	Status         string             `db:"status" json:"status"`
	PrescribedDate time.Time          `db:"prescribed_date" json:"prescribed_date"`
	ValidUntil     time.Time          `db:"valid_until" json:"valid_until"`
	Notes          *string            `db:"notes" json:"notes,omitempty"`
	Items          []PrescriptionItem `json:"items"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

type PrescriptionItem struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PrescriptionID    uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicationID      uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName    string    `db:"medication_name" json:"medication_name"`
	Dosage            string    `db:"dosage" json:"dosage"`
	Frequency         string    `db:"frequency" json:"frequency"`
	Duration          *string   `db:"duration" json:"duration,omitempty"`
	Instructions      *string   `db:"instructions" json:"instructions,omitempty"`
	Quantity          int       `db:"quantity" json:"quantity"`
	DispensedQuantity int       `db:"dispensed_quantity" json:"dispensed_quantity"`
	Refills           int       `db:"refills" json:"refills"`
}

// Remaining is how much of the item the pharmacy may still dispense.
func (i PrescriptionItem) Remaining() int {
	return i.Quantity - i.DispensedQuantity
}

// DeriveStatus recomputes a prescription's status from the dispensed
// quantities of its items. It never resurrects a terminal status, so
// callers must not invoke it on cancelled or expired prescriptions.
func DeriveStatus(items []PrescriptionItem) string {
	if len(items) == 0 {
		return StatusActive
	}
	allFull := true
	anyDispensed := false
	for _, it := range items {
		if it.DispensedQuantity > 0 {
			anyDispensed = true
		}
		if it.DispensedQuantity < it.Quantity {
			allFull = false
		}
	}
	switch {
	case allFull:
		return StatusDispensed
	case anyDispensed:
		return StatusPartiallyDispensed
	default:
		return StatusActive
	}
}
