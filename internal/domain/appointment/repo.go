package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error)
	ListByDay(ctx context.Context, day time.Time, limit, offset int) ([]*Appointment, int, error)
	// HasOverlap reports whether the doctor has a non-cancelled appointment
	// overlapping [start, end), excluding the given appointment id.
	HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error)
	CountOnDay(ctx context.Context, day time.Time) (int, error)
}
