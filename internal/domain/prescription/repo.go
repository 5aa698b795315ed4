package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByNumber(ctx context.Context, number string) (*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateItemDispensed(ctx context.Context, itemID uuid.UUID, dispensed int) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Prescription, int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}
