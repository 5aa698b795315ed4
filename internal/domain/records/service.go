package records

import (
	"context"

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
	records  Repository
	patients PatientDirectory
	numbers  sequence.Source
	runTx    db.TxRunner
}

func NewService(records Repository, patients PatientDirectory, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{records: records, patients: patients, numbers: numbers, runTx: runTx}
}

func (s *Service) Create(ctx context.Context, m *MedicalRecord) error {
	if m.PatientID == uuid.Nil {
		return apperr.RequiredField("patient_id")
	}
	if m.DoctorID == uuid.Nil {
		return apperr.RequiredField("doctor_id")
	}
	if m.Type == "" {
		m.Type = "CONSULTATION"
	}
	if !validTypes[m.Type] {
		return apperr.Validation("invalid record type: "+m.Type, nil)
	}
	if _, err := s.patients.Get(ctx, m.PatientID); err != nil {
		return err
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, sequence.PrefixRecord)
		if err != nil {
			return err
		}
		m.Number = number
		return s.records.Create(ctx, m)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *MedicalRecord) error {
	existing, err := s.records.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if m.Type == "" {
		m.Type = existing.Type
	}
	if !validTypes[m.Type] {
		return apperr.Validation("invalid record type: "+m.Type, nil)
	}
	// Number and provenance fields are not client-mutable.
	m.Number = existing.Number
	m.PatientID = existing.PatientID
	m.DoctorID = existing.DoctorID
	m.AppointmentID = existing.AppointmentID
	return s.records.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.records.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchByDiagnosis(ctx context.Context, term string, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.SearchByDiagnosis(ctx, term, limit, offset)
}
