package appointment

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is applied when a booking omits its end time.
const DefaultDuration = 30 * time.Minute

// ConflictMargin widens the overlap window on both sides so back-to-back
// bookings keep a gap for the doctor between slots.
const ConflictMargin = time.Minute

type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Number             string     `db:"number" json:"number"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	EndTime            time.Time  `db:"end_time" json:"end_time"`
	Type               string     `db:"type" json:"type"`
	Status             string     `db:"status" json:"status"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusCheckedIn  = "CHECKED_IN"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusNoShow     = "NO_SHOW"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCheckedIn: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
	StatusNoShow: true,
}

var validTypes = map[string]bool{
	"CONSULTATION": true, "FOLLOW_UP": true, "EMERGENCY": true,
	"ROUTINE_CHECKUP": true, "LAB_TEST": true, "PROCEDURE": true,
}

// IsTerminal reports whether the appointment can no longer change state.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}
