package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// Search matches name, MRN, email, and phone with a single term.
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
	EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	CountActive(ctx context.Context) (int, error)
}
