package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/sequence"
)

type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	prescriptions Repository
	patients      PatientDirectory
	numbers       sequence.Source
	runTx         db.TxRunner
	now           func() time.Time
}

func NewService(prescriptions Repository, patients PatientDirectory, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{
		prescriptions: prescriptions,
		patients:      patients,
		numbers:       numbers,
		runTx:         runTx,
		now:           time.Now,
	}
}

func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return apperr.RequiredField("patient_id")
	}
	if p.DoctorID == uuid.Nil {
		return apperr.RequiredField("doctor_id")
	}
	if len(p.Items) == 0 {
		return apperr.Validation("a prescription requires at least one item", nil)
	}
	for i := range p.Items {
		it := &p.Items[i]
		fields := map[string]string{}
		if it.MedicationID == uuid.Nil {
			fields["medication_id"] = "is required"
		}
		if it.MedicationName == "" {
			fields["medication_name"] = "is required"
		}
		if it.Dosage == "" {
			fields["dosage"] = "is required"
		}
		if it.Frequency == "" {
			fields["frequency"] = "is required"
		}
		if it.Quantity <= 0 {
			fields["quantity"] = "must be greater than zero"
		}
		if it.Refills < 0 {
			fields["refills"] = "must not be negative"
		}
		if len(fields) > 0 {
			return apperr.Validation("invalid prescription item", fields)
		}
		it.DispensedQuantity = 0
	}
	if _, err := s.patients.Get(ctx, p.PatientID); err != nil {
		return err
	}

	if p.PrescribedDate.IsZero() {
		p.PrescribedDate = s.now()
	}
	if p.ValidUntil.IsZero() {
		p.ValidUntil = p.PrescribedDate.AddDate(0, 1, 0)
	}
	if p.ValidUntil.Before(p.PrescribedDate) {
		return apperr.Validation("valid_until must not precede the prescribed date", nil)
	}
	p.Status = StatusActive

	return s.runTx(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, sequence.PrefixPrescription)
		if err != nil {
			return err
		}
		p.Number = number
		return s.prescriptions.Create(ctx, p)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Prescription, error) {
	return s.prescriptions.GetByNumber(ctx, number)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Prescription, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid prescription status: "+status, nil)
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCancelled {
		return nil, apperr.Conflict("cannot change status of a cancelled prescription")
	}
	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.UpdateStatus(ctx, id, status)
	}); err != nil {
		return nil, err
	}
	p.Status = status
	return p, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusDispensed {
		return nil, apperr.Conflict("cannot cancel a fully dispensed prescription")
	}
	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.UpdateStatus(ctx, id, StatusCancelled)
	}); err != nil {
		return nil, err
	}
	p.Status = StatusCancelled
	return p, nil
}

// RecordDispense debits a prescription item after the pharmacy hands the
// medication out. It runs on the caller's context so the pharmacy can keep
// the inventory debit and the prescription update in one transaction.
func (s *Service) RecordDispense(ctx context.Context, id, itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero", nil)
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch p.Status {
	case StatusCancelled:
		return apperr.Conflict("cannot dispense against a cancelled prescription")
	case StatusExpired:
		return apperr.Conflict("prescription has expired")
	}
	if s.now().After(p.ValidUntil) {
		return apperr.Conflict("prescription has expired")
	}

	var item *PrescriptionItem
	for i := range p.Items {
		if p.Items[i].ID == itemID {
			item = &p.Items[i]
			break
		}
	}
	if item == nil {
		return apperr.NotFound("prescription item not found")
	}
	if quantity > item.Remaining() {
		return apperr.Conflict("quantity exceeds remaining prescription quantity")
	}

	item.DispensedQuantity += quantity
	if err := s.prescriptions.UpdateItemDispensed(ctx, itemID, item.DispensedQuantity); err != nil {
		return err
	}
	if next := DeriveStatus(p.Items); next != p.Status {
		return s.prescriptions.UpdateStatus(ctx, id, next)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Prescription, int, error) {
	if !validStatuses[status] {
		return nil, 0, apperr.Validation("invalid prescription status: "+status, nil)
	}
	return s.prescriptions.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.prescriptions.CountByStatus(ctx, StatusActive)
}
