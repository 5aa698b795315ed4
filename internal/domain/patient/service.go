package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/sequence"
)

type Service struct {
	patients Repository
	numbers  sequence.Source
	runTx    db.TxRunner
}

func NewService(patients Repository, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{patients: patients, numbers: numbers, runTx: runTx}
}

func (s *Service) validate(p *Patient) error {
	fields := map[string]string{}
	if p.FirstName == "" {
		fields["first_name"] = "required"
	}
	if p.LastName == "" {
		fields["last_name"] = "required"
	}
	if p.DateOfBirth.IsZero() {
		fields["date_of_birth"] = "required"
	} else if p.DateOfBirth.After(time.Now()) {
		fields["date_of_birth"] = "must not be in the future"
	}
	if !validGenders[p.Gender] {
		fields["gender"] = "must be MALE, FEMALE, or OTHER"
	}
	if p.BloodType != nil && !validBloodTypes[*p.BloodType] {
		fields["blood_type"] = "invalid blood type"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid patient", fields)
	}
	return nil
}

// Create registers a patient, generating the MRN inside the same transaction
// as the insert.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if p.Email != nil && *p.Email != "" {
		exists, err := s.patients.EmailExists(ctx, *p.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("a patient with email %s already exists", *p.Email)
		}
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		mrn, err := s.numbers.Next(ctx, sequence.PrefixMRN)
		if err != nil {
			return err
		}
		p.MRN = mrn
		p.Active = true
		return s.patients.Create(ctx, p)
	})
}

// Get returns an active patient by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	p, err := s.patients.GetByMRN(ctx, mrn)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if p.Email != nil && *p.Email != "" {
		exists, err := s.patients.EmailExists(ctx, *p.Email, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("a patient with email %s already exists", *p.Email)
		}
	}
	// MRN and active flag are not client-mutable.
	p.MRN = existing.MRN
	p.Active = existing.Active
	return s.patients.Update(ctx, p)
}

// Deactivate soft-deletes the patient.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.patients.SetActive(ctx, id, false)
}

// Activate restores a soft-deleted patient.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.patients.SetActive(ctx, id, true)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, query, limit, offset)
}

// CountActive reports the number of active patients, for dashboards.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.patients.CountActive(ctx)
}
