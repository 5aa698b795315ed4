package laboratory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TestRepository interface {
	CreateTest(ctx context.Context, t *LabTest) error
	GetTestByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	GetTestByCode(ctx context.Context, code string) (*LabTest, error)
	UpdateTest(ctx context.Context, t *LabTest) error
	CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	ListTests(ctx context.Context, category string, activeOnly bool, limit, offset int) ([]*LabTest, int, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *LabOrder) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	UpdateOrder(ctx context.Context, o *LabOrder) error
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status string) error
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*LabOrderItem, error)
	ListOrdersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error)
	ListOrdersByStatus(ctx context.Context, status string, limit, offset int) ([]*LabOrder, int, error)
	CountOrdersByStatus(ctx context.Context, status string) (int, error)
	CountOrderedOn(ctx context.Context, day time.Time) (int, error)
}

type ResultRepository interface {
	CreateResult(ctx context.Context, r *LabResult) error
	GetResultByID(ctx context.Context, id uuid.UUID) (*LabResult, error)
	GetResultByItem(ctx context.Context, itemID uuid.UUID) (*LabResult, error)
	SetVerified(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time) error
	ListUnverifiedCritical(ctx context.Context, limit, offset int) ([]*LabResult, int, error)
}
