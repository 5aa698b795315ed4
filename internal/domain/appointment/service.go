package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/sequence"
)

// PatientDirectory is the slice of the patient service this module needs.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	appointments Repository
	patients     PatientDirectory
	numbers      sequence.Source
	runTx        db.TxRunner
}

func NewService(appointments Repository, patients PatientDirectory, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{appointments: appointments, patients: patients, numbers: numbers, runTx: runTx}
}

// Book creates an appointment after checking the doctor's calendar for
// overlap. The overlap window is widened by ConflictMargin on both sides.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.RequiredField("patient_id")
	}
	if a.DoctorID == uuid.Nil {
		return apperr.RequiredField("doctor_id")
	}
	if a.StartTime.IsZero() {
		return apperr.RequiredField("start_time")
	}
	if a.Type == "" {
		a.Type = "CONSULTATION"
	}
	if !validTypes[a.Type] {
		return apperr.Validation("invalid appointment type: "+a.Type, nil)
	}
	if a.EndTime.IsZero() {
		a.EndTime = a.StartTime.Add(DefaultDuration)
	}
	if !a.EndTime.After(a.StartTime) {
		return apperr.Validation("end_time must be after start_time", nil)
	}
	if _, err := s.patients.Get(ctx, a.PatientID); err != nil {
		return err
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		busy, err := s.appointments.HasOverlap(ctx, a.DoctorID,
			a.StartTime.Add(-ConflictMargin), a.EndTime.Add(ConflictMargin), uuid.Nil)
		if err != nil {
			return err
		}
		if busy {
			return apperr.Conflict("doctor already has an appointment in this time slot")
		}

		number, err := s.numbers.Next(ctx, sequence.PrefixAppointment)
		if err != nil {
			return err
		}
		a.Number = number
		a.Status = StatusScheduled
		return s.appointments.Create(ctx, a)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// Reschedule moves an appointment to a new slot, re-running the overlap
// check with the appointment itself excluded.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	var moved *Appointment
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.IsTerminal() {
			return apperr.Conflict("cannot reschedule a %s appointment", a.Status)
		}
		if end.IsZero() {
			end = start.Add(DefaultDuration)
		}
		if !end.After(start) {
			return apperr.Validation("end_time must be after start_time", nil)
		}

		busy, err := s.appointments.HasOverlap(ctx, a.DoctorID,
			start.Add(-ConflictMargin), end.Add(ConflictMargin), a.ID)
		if err != nil {
			return err
		}
		if busy {
			return apperr.Conflict("doctor already has an appointment in this time slot")
		}

		a.StartTime = start
		a.EndTime = end
		a.Status = StatusScheduled
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		moved = a
		return nil
	})
	return moved, err
}

// UpdateStatus moves the appointment through its workflow states.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid appointment status: "+status, nil)
	}

	var updated *Appointment
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			return apperr.Conflict("cannot update a cancelled appointment")
		}
		a.Status = status
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	return updated, err
}

// Cancel records the cancellation reason and timestamp.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	var cancelled *Appointment
	err := s.runTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCompleted {
			return apperr.Conflict("cannot cancel a completed appointment")
		}
		now := time.Now()
		a.Status = StatusCancelled
		a.CancellationReason = &reason
		a.CancelledAt = &now
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		cancelled = a
		return nil
	})
	return cancelled, err
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, day, limit, offset)
}

func (s *Service) ListByDay(ctx context.Context, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDay(ctx, day, limit, offset)
}

// CountToday reports today's non-cancelled appointments, for dashboards.
func (s *Service) CountToday(ctx context.Context) (int, error) {
	return s.appointments.CountOnDay(ctx, time.Now())
}
