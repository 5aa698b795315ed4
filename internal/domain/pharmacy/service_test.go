package pharmacy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/prescription"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// -- Mocks --

type mockStore struct {
	medications map[uuid.UUID]*Medication
	suppliers   map[uuid.UUID]*Supplier
	batches     map[uuid.UUID]*InventoryBatch
	dispensings map[uuid.UUID]*Dispensing
}

func newMockStore() *mockStore {
	return &mockStore{
		medications: make(map[uuid.UUID]*Medication),
		suppliers:   make(map[uuid.UUID]*Supplier),
		batches:     make(map[uuid.UUID]*InventoryBatch),
		dispensings: make(map[uuid.UUID]*Dispensing),
	}
}

func (m *mockStore) CreateMedication(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	m.medications[med.ID] = med
	return nil
}

func (m *mockStore) GetMedicationByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.medications[id]
	if !ok {
		return nil, apperr.NotFound("medication not found")
	}
	return med, nil
}

func (m *mockStore) GetMedicationByCode(_ context.Context, code string) (*Medication, error) {
	for _, med := range m.medications {
		if med.Code == code {
			return med, nil
		}
	}
	return nil, apperr.NotFound("medication not found")
}

func (m *mockStore) UpdateMedication(_ context.Context, med *Medication) error {
	m.medications[med.ID] = med
	return nil
}

func (m *mockStore) MedicationCodeExists(_ context.Context, code string, excludeID uuid.UUID) (bool, error) {
	for _, med := range m.medications {
		if med.Code == code && med.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ListMedications(_ context.Context, search string, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	var result []*Medication
	for _, med := range m.medications {
		if activeOnly && !med.Active {
			continue
		}
		result = append(result, med)
	}
	return result, len(result), nil
}

func (m *mockStore) CountActiveMedications(_ context.Context) (int, error) {
	n := 0
	for _, med := range m.medications {
		if med.Active {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CreateSupplier(_ context.Context, s *Supplier) error {
	s.ID = uuid.New()
	m.suppliers[s.ID] = s
	return nil
}

func (m *mockStore) GetSupplierByID(_ context.Context, id uuid.UUID) (*Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return nil, apperr.NotFound("supplier not found")
	}
	return s, nil
}

func (m *mockStore) UpdateSupplier(_ context.Context, s *Supplier) error {
	m.suppliers[s.ID] = s
	return nil
}

func (m *mockStore) ListSuppliers(_ context.Context, activeOnly bool, limit, offset int) ([]*Supplier, int, error) {
	var result []*Supplier
	for _, s := range m.suppliers {
		if activeOnly && !s.Active {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (m *mockStore) CreateBatch(_ context.Context, b *InventoryBatch) error {
	b.ID = uuid.New()
	m.batches[b.ID] = b
	return nil
}

func (m *mockStore) GetBatchByID(_ context.Context, id uuid.UUID) (*InventoryBatch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, apperr.NotFound("inventory batch not found")
	}
	return b, nil
}

func (m *mockStore) GetBatchForUpdate(ctx context.Context, id uuid.UUID) (*InventoryBatch, error) {
	return m.GetBatchByID(ctx, id)
}

func (m *mockStore) UpdateBatch(_ context.Context, b *InventoryBatch) error {
	m.batches[b.ID] = b
	return nil
}

func (m *mockStore) ListBatchesByMedication(_ context.Context, medicationID uuid.UUID, limit, offset int) ([]*InventoryBatch, int, error) {
	var result []*InventoryBatch
	for _, b := range m.batches {
		if b.MedicationID == medicationID {
			result = append(result, b)
		}
	}
	return result, len(result), nil
}

func (m *mockStore) ListAllBatches(_ context.Context) ([]*InventoryBatch, error) {
	var result []*InventoryBatch
	for _, b := range m.batches {
		result = append(result, b)
	}
	return result, nil
}

func (m *mockStore) CreateDispensing(_ context.Context, d *Dispensing) error {
	d.ID = uuid.New()
	m.dispensings[d.ID] = d
	return nil
}

func (m *mockStore) GetDispensingByID(_ context.Context, id uuid.UUID) (*Dispensing, error) {
	d, ok := m.dispensings[id]
	if !ok {
		return nil, apperr.NotFound("dispensing record not found")
	}
	return d, nil
}

func (m *mockStore) ListDispensingsByPrescription(_ context.Context, prescriptionID uuid.UUID) ([]*Dispensing, error) {
	var result []*Dispensing
	for _, d := range m.dispensings {
		if d.PrescriptionID == prescriptionID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *mockStore) CountDispensedOn(_ context.Context, day time.Time) (int, error) {
	return len(m.dispensings), nil
}

// mockPrescriptions mirrors the dispense bookkeeping of the prescription
// service.
type mockPrescriptions struct {
	items map[uuid.UUID]*prescription.Prescription
}

func (m *mockPrescriptions) Get(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("prescription not found")
	}
	return p, nil
}

func (m *mockPrescriptions) RecordDispense(_ context.Context, id, itemID uuid.UUID, quantity int) error {
	p, ok := m.items[id]
	if !ok {
		return apperr.NotFound("prescription not found")
	}
	if p.Status == prescription.StatusCancelled {
		return apperr.Conflict("cannot dispense against a cancelled prescription")
	}
	for i := range p.Items {
		if p.Items[i].ID == itemID {
			if quantity > p.Items[i].Remaining() {
				return apperr.Conflict("quantity exceeds remaining prescription quantity")
			}
			p.Items[i].DispensedQuantity += quantity
			p.Status = prescription.DeriveStatus(p.Items)
			return nil
		}
	}
	return apperr.NotFound("prescription item not found")
}

type fixture struct {
	svc   *Service
	store *mockStore
	rx    *mockPrescriptions
}

func newFixture() *fixture {
	store := newMockStore()
	rx := &mockPrescriptions{items: make(map[uuid.UUID]*prescription.Prescription)}
	svc := NewService(store, store, store, store, rx, db.PassthroughTx, 30)
	return &fixture{svc: svc, store: store, rx: rx}
}

func (f *fixture) seedMedication(t *testing.T, reorderLevel int) *Medication {
	t.Helper()
	med := &Medication{
		Code:         "AMOX500",
		Name:         "Amoxicillin 500mg",
		Form:         "CAPSULE",
		UnitPrice:    decimal.NewFromFloat(0.85),
		ReorderLevel: reorderLevel,
	}
	if err := f.svc.CreateMedication(context.Background(), med); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return med
}

func (f *fixture) seedBatch(t *testing.T, med *Medication, quantity int, expiry time.Time) *InventoryBatch {
	t.Helper()
	b := &InventoryBatch{
		MedicationID: med.ID,
		BatchNumber:  "B001",
		Quantity:     quantity,
		ExpiryDate:   expiry,
		UnitCost:     decimal.NewFromFloat(0.40),
	}
	if err := f.svc.AddBatch(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func (f *fixture) seedPrescription(med *Medication, quantity int) *prescription.Prescription {
	p := &prescription.Prescription{
		ID:             uuid.New(),
		Number:         "RX-20240115-00001",
		PatientID:      uuid.New(),
		DoctorID:       uuid.New(),
		Status:         prescription.StatusActive,
		PrescribedDate: time.Now(),
		ValidUntil:     time.Now().AddDate(0, 1, 0),
		Items: []prescription.PrescriptionItem{{
			ID:             uuid.New(),
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Dosage:         "500mg",
			Frequency:      "TID",
			Quantity:       quantity,
		}},
	}
	f.rx.items[p.ID] = p
	return p
}

func future() time.Time { return time.Now().AddDate(1, 0, 0) }

// -- Tests --

func TestCreateMedication_RejectsDuplicateCode(t *testing.T) {
	f := newFixture()
	f.seedMedication(t, 20)

	dup := &Medication{Code: "AMOX500", Name: "Copy", Form: "CAPSULE"}
	if err := f.svc.CreateMedication(context.Background(), dup); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAddBatch_DerivesStatus(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 20)

	b := f.seedBatch(t, med, 100, future())
	if b.Status != StockAvailable {
		t.Errorf("expected AVAILABLE, got %s", b.Status)
	}

	low := &InventoryBatch{
		MedicationID: med.ID, BatchNumber: "B002", Quantity: 10,
		ExpiryDate: future(), UnitCost: decimal.NewFromFloat(0.40),
	}
	if err := f.svc.AddBatch(context.Background(), low); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if low.Status != StockLow {
		t.Errorf("expected LOW_STOCK, got %s", low.Status)
	}
}

func TestAdjustQuantity_FloorsAtZero(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 20)
	b := f.seedBatch(t, med, 10, future())

	if _, err := f.svc.AdjustQuantity(context.Background(), b.ID, -11); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := f.svc.AdjustQuantity(context.Background(), b.ID, -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Quantity != 0 || got.Status != StockOut {
		t.Errorf("expected empty OUT_OF_STOCK batch, got %d %s", got.Quantity, got.Status)
	}
}

func TestReserve_ChecksAvailability(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 5)
	b := f.seedBatch(t, med, 10, future())

	if _, err := f.svc.Reserve(context.Background(), b.ID, 11); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := f.svc.Reserve(context.Background(), b.ID, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Available() != 2 {
		t.Errorf("expected 2 available, got %d", got.Available())
	}

	got, err = f.svc.Release(context.Background(), b.ID, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reserved != 0 {
		t.Errorf("release must floor reserved at zero, got %d", got.Reserved)
	}
}

func TestDispense_DebitsStockAndPrescription(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 20)
	b := f.seedBatch(t, med, 100, future())
	p := f.seedPrescription(med, 90)

	d := &Dispensing{
		PrescriptionID:     p.ID,
		PrescriptionItemID: p.Items[0].ID,
		BatchID:            b.ID,
		Quantity:           85,
		DispensedBy:        uuid.New(),
	}
	if err := f.svc.Dispense(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.svc.GetBatch(context.Background(), b.ID)
	if got.Quantity != 15 || got.Status != StockLow {
		t.Errorf("expected 15 on hand LOW_STOCK, got %d %s", got.Quantity, got.Status)
	}
	if p.Items[0].DispensedQuantity != 85 {
		t.Errorf("prescription not debited: %d", p.Items[0].DispensedQuantity)
	}
	if p.Status != prescription.StatusPartiallyDispensed {
		t.Errorf("expected PARTIALLY_DISPENSED, got %s", p.Status)
	}

	d2 := &Dispensing{
		PrescriptionID:     p.ID,
		PrescriptionItemID: p.Items[0].ID,
		BatchID:            b.ID,
		Quantity:           5,
		DispensedBy:        uuid.New(),
	}
	if err := f.svc.Dispense(context.Background(), d2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = f.svc.GetBatch(context.Background(), b.ID)
	if got.Quantity != 10 || got.Status != StockLow {
		t.Errorf("expected 10 on hand LOW_STOCK, got %d %s", got.Quantity, got.Status)
	}
}

func TestDispense_RejectsInsufficientStock(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 5)
	b := f.seedBatch(t, med, 10, future())
	p := f.seedPrescription(med, 90)

	d := &Dispensing{
		PrescriptionID:     p.ID,
		PrescriptionItemID: p.Items[0].ID,
		BatchID:            b.ID,
		Quantity:           11,
		DispensedBy:        uuid.New(),
	}
	if err := f.svc.Dispense(context.Background(), d); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDispense_RejectsWrongMedication(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 5)
	b := f.seedBatch(t, med, 100, future())

	other := &Medication{Code: "IBU200", Name: "Ibuprofen", Form: "TABLET", ReorderLevel: 5}
	if err := f.svc.CreateMedication(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := f.seedPrescription(other, 30)

	d := &Dispensing{
		PrescriptionID:     p.ID,
		PrescriptionItemID: p.Items[0].ID,
		BatchID:            b.ID,
		Quantity:           10,
		DispensedBy:        uuid.New(),
	}
	if err := f.svc.Dispense(context.Background(), d); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDispense_RejectsExpiredBatch(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 5)
	b := f.seedBatch(t, med, 100, future())
	f.store.batches[b.ID].ExpiryDate = time.Now().AddDate(0, 0, -1)
	p := f.seedPrescription(med, 30)

	d := &Dispensing{
		PrescriptionID:     p.ID,
		PrescriptionItemID: p.Items[0].ID,
		BatchID:            b.ID,
		Quantity:           10,
		DispensedBy:        uuid.New(),
	}
	if err := f.svc.Dispense(context.Background(), d); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStockAlerts(t *testing.T) {
	f := newFixture()
	med := f.seedMedication(t, 20)

	f.seedBatch(t, med, 100, future())
	expiring := &InventoryBatch{
		MedicationID: med.ID, BatchNumber: "B003", Quantity: 100,
		ExpiryDate: time.Now().AddDate(0, 0, 10), UnitCost: decimal.NewFromFloat(0.40),
	}
	if err := f.svc.AddBatch(context.Background(), expiring); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	empty := &InventoryBatch{
		MedicationID: med.ID, BatchNumber: "B004", Quantity: 0,
		ExpiryDate: future(), UnitCost: decimal.NewFromFloat(0.40),
	}
	if err := f.svc.AddBatch(context.Background(), empty); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alerts, err := f.svc.StockAlerts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	types := map[string]int{}
	for _, a := range alerts {
		types[a.Type]++
	}
	if types[AlertExpiringSoon] != 1 || types[AlertOutOfStock] != 1 {
		t.Errorf("unexpected alerts: %v", types)
	}
}

func TestDeriveStockStatus(t *testing.T) {
	today := time.Now()
	b := InventoryBatch{Quantity: 100, ExpiryDate: future()}
	if got := DeriveStockStatus(b, 20, today); got != StockAvailable {
		t.Errorf("expected AVAILABLE, got %s", got)
	}
	b.Quantity = 15
	if got := DeriveStockStatus(b, 20, today); got != StockLow {
		t.Errorf("expected LOW_STOCK, got %s", got)
	}
	b.Quantity = 0
	if got := DeriveStockStatus(b, 20, today); got != StockOut {
		t.Errorf("expected OUT_OF_STOCK, got %s", got)
	}
	b.Quantity = 100
	b.ExpiryDate = today.AddDate(0, 0, -1)
	if got := DeriveStockStatus(b, 20, today); got != StockExpired {
		t.Errorf("expected EXPIRED, got %s", got)
	}
}
