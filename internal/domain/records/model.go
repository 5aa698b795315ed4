package records

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord documents a single clinical encounter.
type MedicalRecord struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Number              string     `db:"number" json:"number"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID            uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID       *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Type                string     `db:"type" json:"type"`
	ChiefComplaint      *string    `db:"chief_complaint" json:"chief_complaint,omitempty"`
	Symptoms            *string    `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis           *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	TreatmentPlan       *string    `db:"treatment_plan" json:"treatment_plan,omitempty"`
	VitalSigns          *string    `db:"vital_signs" json:"vital_signs,omitempty"`
	PhysicalExamination *string    `db:"physical_examination" json:"physical_examination,omitempty"`
	Notes               *string    `db:"notes" json:"notes,omitempty"`
	FollowUpDate        *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

var validTypes = map[string]bool{
	"CONSULTATION": true, "FOLLOW_UP": true, "EMERGENCY": true,
	"LAB_RESULT": true, "IMAGING": true, "PROCEDURE": true,
	"DISCHARGE_SUMMARY": true,
}
