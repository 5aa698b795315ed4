package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/prescription"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// PrescriptionDirectory is the slice of the prescription service the pharmacy
// needs: lookups plus the dispense debit, which must run inside the
// pharmacy's transaction.
type PrescriptionDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	RecordDispense(ctx context.Context, id, itemID uuid.UUID, quantity int) error
}

type Service struct {
	medications   MedicationRepository
	suppliers     SupplierRepository
	inventory     InventoryRepository
	dispensings   DispensingRepository
	prescriptions PrescriptionDirectory
	runTx         db.TxRunner
	expiryWarning time.Duration
	now           func() time.Time
}

func NewService(medications MedicationRepository, suppliers SupplierRepository,
	inventory InventoryRepository, dispensings DispensingRepository,
	prescriptions PrescriptionDirectory, runTx db.TxRunner, expiryWarningDays int) *Service {
	if expiryWarningDays <= 0 {
		expiryWarningDays = 30
	}
	return &Service{
		medications:   medications,
		suppliers:     suppliers,
		inventory:     inventory,
		dispensings:   dispensings,
		prescriptions: prescriptions,
		runTx:         runTx,
		expiryWarning: time.Duration(expiryWarningDays) * 24 * time.Hour,
		now:           time.Now,
	}
}

// -- Medications --

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if err := validateMedication(m); err != nil {
		return err
	}
	exists, err := s.medications.MedicationCodeExists(ctx, m.Code, uuid.Nil)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("a medication with this code already exists")
	}
	m.Active = true
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.medications.CreateMedication(ctx, m)
	})
}

func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	existing, err := s.medications.GetMedicationByID(ctx, m.ID)
	if err != nil {
		return err
	}
	m.Code = existing.Code
	if err := validateMedication(m); err != nil {
		return err
	}
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.medications.UpdateMedication(ctx, m)
	})
}

func validateMedication(m *Medication) error {
	fields := map[string]string{}
	if m.Code == "" {
		fields["code"] = "is required"
	}
	if m.Name == "" {
		fields["name"] = "is required"
	}
	if !validForms[m.Form] {
		fields["form"] = "is not a recognised dosage form"
	}
	if m.UnitPrice.IsNegative() {
		fields["unit_price"] = "must not be negative"
	}
	if m.ReorderLevel < 0 {
		fields["reorder_level"] = "must not be negative"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid medication", fields)
	}
	return nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.medications.GetMedicationByID(ctx, id)
}

func (s *Service) GetMedicationByCode(ctx context.Context, code string) (*Medication, error) {
	return s.medications.GetMedicationByCode(ctx, code)
}

func (s *Service) ListMedications(ctx context.Context, search string, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	return s.medications.ListMedications(ctx, search, activeOnly, limit, offset)
}

// -- Suppliers --

func (s *Service) CreateSupplier(ctx context.Context, sup *Supplier) error {
	if sup.Name == "" {
		return apperr.RequiredField("name")
	}
	sup.Active = true
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.suppliers.CreateSupplier(ctx, sup)
	})
}

func (s *Service) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	if sup.Name == "" {
		return apperr.RequiredField("name")
	}
	if _, err := s.suppliers.GetSupplierByID(ctx, sup.ID); err != nil {
		return err
	}
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.suppliers.UpdateSupplier(ctx, sup)
	})
}

func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	return s.suppliers.GetSupplierByID(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool, limit, offset int) ([]*Supplier, int, error) {
	return s.suppliers.ListSuppliers(ctx, activeOnly, limit, offset)
}

// -- Inventory --

func (s *Service) AddBatch(ctx context.Context, b *InventoryBatch) error {
	fields := map[string]string{}
	if b.MedicationID == uuid.Nil {
		fields["medication_id"] = "is required"
	}
	if b.BatchNumber == "" {
		fields["batch_number"] = "is required"
	}
	if b.Quantity < 0 {
		fields["quantity"] = "must not be negative"
	}
	if b.ExpiryDate.IsZero() {
		fields["expiry_date"] = "is required"
	}
	if b.UnitCost.IsNegative() {
		fields["unit_cost"] = "must not be negative"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid inventory batch", fields)
	}

	med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
	if err != nil {
		return err
	}
	if b.SupplierID != nil {
		if _, err := s.suppliers.GetSupplierByID(ctx, *b.SupplierID); err != nil {
			return err
		}
	}
	b.Reserved = 0
	b.Status = DeriveStockStatus(*b, med.ReorderLevel, s.now())
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.inventory.CreateBatch(ctx, b)
	})
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*InventoryBatch, error) {
	return s.inventory.GetBatchByID(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*InventoryBatch, int, error) {
	return s.inventory.ListBatchesByMedication(ctx, medicationID, limit, offset)
}

// AdjustQuantity applies a manual stock correction. Negative deltas may not
// take the batch below zero.
func (s *Service) AdjustQuantity(ctx context.Context, batchID uuid.UUID, delta int) (*InventoryBatch, error) {
	var b *InventoryBatch
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.inventory.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Quantity+delta < 0 {
			return apperr.Conflict("cannot reduce quantity below zero")
		}
		med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
		if err != nil {
			return err
		}
		b.Quantity += delta
		b.Status = DeriveStockStatus(*b, med.ReorderLevel, s.now())
		return s.inventory.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Reserve(ctx context.Context, batchID uuid.UUID, quantity int) (*InventoryBatch, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero", nil)
	}
	var b *InventoryBatch
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.inventory.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if quantity > b.Available() {
			return apperr.Conflict("insufficient inventory quantity")
		}
		med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
		if err != nil {
			return err
		}
		b.Reserved += quantity
		b.Status = DeriveStockStatus(*b, med.ReorderLevel, s.now())
		return s.inventory.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Release(ctx context.Context, batchID uuid.UUID, quantity int) (*InventoryBatch, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero", nil)
	}
	var b *InventoryBatch
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.inventory.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
		if err != nil {
			return err
		}
		b.Reserved -= quantity
		if b.Reserved < 0 {
			b.Reserved = 0
		}
		b.Status = DeriveStockStatus(*b, med.ReorderLevel, s.now())
		return s.inventory.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// StockAlerts scans every batch and reports stock that needs attention.
func (s *Service) StockAlerts(ctx context.Context) ([]StockAlert, error) {
	batches, err := s.inventory.ListAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	warnBefore := now.Add(s.expiryWarning)

	var alerts []StockAlert
	for _, b := range batches {
		med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
		if err != nil {
			return nil, err
		}
		alert := StockAlert{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			BatchID:        b.ID,
			BatchNumber:    b.BatchNumber,
			Available:      b.Available(),
			ReorderLevel:   med.ReorderLevel,
		}
		switch DeriveStockStatus(*b, med.ReorderLevel, now) {
		case StockExpired:
			alert.Type = AlertExpired
			expiry := b.ExpiryDate
			alert.ExpiryDate = &expiry
		case StockOut:
			alert.Type = AlertOutOfStock
		case StockLow:
			alert.Type = AlertLowStock
		default:
			if b.ExpiryDate.Before(warnBefore) {
				alert.Type = AlertExpiringSoon
				expiry := b.ExpiryDate
				alert.ExpiryDate = &expiry
			} else {
				continue
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *Service) CountActiveMedications(ctx context.Context) (int, error) {
	return s.medications.CountActiveMedications(ctx)
}

func (s *Service) CountStockAlerts(ctx context.Context) (int, error) {
	alerts, err := s.StockAlerts(ctx)
	if err != nil {
		return 0, err
	}
	return len(alerts), nil
}

// -- Dispensing --

func (s *Service) Dispense(ctx context.Context, d *Dispensing) error {
	if d.PrescriptionID == uuid.Nil {
		return apperr.RequiredField("prescription_id")
	}
	if d.PrescriptionItemID == uuid.Nil {
		return apperr.RequiredField("prescription_item_id")
	}
	if d.BatchID == uuid.Nil {
		return apperr.RequiredField("batch_id")
	}
	if d.DispensedBy == uuid.Nil {
		return apperr.RequiredField("dispensed_by")
	}
	if d.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero", nil)
	}

	rx, err := s.prescriptions.Get(ctx, d.PrescriptionID)
	if err != nil {
		return err
	}
	var item *prescription.PrescriptionItem
	for i := range rx.Items {
		if rx.Items[i].ID == d.PrescriptionItemID {
			item = &rx.Items[i]
			break
		}
	}
	if item == nil {
		return apperr.NotFound("prescription item not found")
	}

	now := s.now()
	return s.runTx(ctx, func(ctx context.Context) error {
		b, err := s.inventory.GetBatchForUpdate(ctx, d.BatchID)
		if err != nil {
			return err
		}
		if b.MedicationID != item.MedicationID {
			return apperr.Conflict("batch does not contain the prescribed medication")
		}
		med, err := s.medications.GetMedicationByID(ctx, b.MedicationID)
		if err != nil {
			return err
		}
		if DeriveStockStatus(*b, med.ReorderLevel, now) == StockExpired {
			return apperr.Conflict("cannot dispense from an expired batch")
		}
		if d.Quantity > b.Available() {
			return apperr.Conflict("insufficient inventory quantity")
		}

		d.MedicationID = b.MedicationID
		d.Status = DispensingDispensed
		d.DispensedAt = now

		if err := s.prescriptions.RecordDispense(ctx, d.PrescriptionID, d.PrescriptionItemID, d.Quantity); err != nil {
			return err
		}
		b.Quantity -= d.Quantity
		b.Status = DeriveStockStatus(*b, med.ReorderLevel, now)
		if err := s.inventory.UpdateBatch(ctx, b); err != nil {
			return err
		}
		return s.dispensings.CreateDispensing(ctx, d)
	})
}

func (s *Service) GetDispensing(ctx context.Context, id uuid.UUID) (*Dispensing, error) {
	return s.dispensings.GetDispensingByID(ctx, id)
}

func (s *Service) ListDispensingsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Dispensing, error) {
	return s.dispensings.ListDispensingsByPrescription(ctx, prescriptionID)
}

func (s *Service) CountDispensedToday(ctx context.Context) (int, error) {
	return s.dispensings.CountDispensedOn(ctx, s.now())
}
