package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	CreateMedication(ctx context.Context, m *Medication) error
	GetMedicationByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	GetMedicationByCode(ctx context.Context, code string) (*Medication, error)
	UpdateMedication(ctx context.Context, m *Medication) error
	MedicationCodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	ListMedications(ctx context.Context, search string, activeOnly bool, limit, offset int) ([]*Medication, int, error)
	CountActiveMedications(ctx context.Context) (int, error)
}

type SupplierRepository interface {
	CreateSupplier(ctx context.Context, s *Supplier) error
	GetSupplierByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	UpdateSupplier(ctx context.Context, s *Supplier) error
	ListSuppliers(ctx context.Context, activeOnly bool, limit, offset int) ([]*Supplier, int, error)
}

type InventoryRepository interface {
	CreateBatch(ctx context.Context, b *InventoryBatch) error
	GetBatchByID(ctx context.Context, id uuid.UUID) (*InventoryBatch, error)
	// GetBatchForUpdate locks the batch row; call inside a transaction.
	GetBatchForUpdate(ctx context.Context, id uuid.UUID) (*InventoryBatch, error)
	UpdateBatch(ctx context.Context, b *InventoryBatch) error
	ListBatchesByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*InventoryBatch, int, error)
	ListAllBatches(ctx context.Context) ([]*InventoryBatch, error)
}

type DispensingRepository interface {
	CreateDispensing(ctx context.Context, d *Dispensing) error
	GetDispensingByID(ctx context.Context, id uuid.UUID) (*Dispensing, error)
	ListDispensingsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Dispensing, error)
	CountDispensedOn(ctx context.Context, day time.Time) (int, error)
}
