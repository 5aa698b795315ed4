package prescription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// -- Mocks --

type mockRepo struct {
	items map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
		p.Items[i].PrescriptionID = p.ID
	}
	m.items[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("prescription not found")
	}
	return p, nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Prescription, error) {
	for _, p := range m.items {
		if p.Number == number {
			return p, nil
		}
	}
	return nil, apperr.NotFound("prescription not found")
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.items[id]
	if !ok {
		return apperr.NotFound("prescription not found")
	}
	p.Status = status
	return nil
}

func (m *mockRepo) UpdateItemDispensed(_ context.Context, itemID uuid.UUID, dispensed int) error {
	for _, p := range m.items {
		for i := range p.Items {
			if p.Items[i].ID == itemID {
				p.Items[i].DispensedQuantity = dispensed
				return nil
			}
		}
	}
	return apperr.NotFound("prescription item not found")
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for _, p := range m.items {
		if p.PatientID == patientID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for _, p := range m.items {
		if p.DoctorID == doctorID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status string, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for _, p := range m.items {
		if p.Status == status {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) CountByStatus(_ context.Context, status string) (int, error) {
	n := 0
	for _, p := range m.items {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

type mockPatients struct {
	known map[uuid.UUID]bool
}

func (m *mockPatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !m.known[id] {
		return nil, apperr.NotFound("patient not found")
	}
	return &patient.Patient{ID: id, Active: true}, nil
}

type mockNumbers struct {
	n int64
}

func (m *mockNumbers) Next(_ context.Context, prefix string) (string, error) {
	m.n++
	return fmt.Sprintf("%s-20240115-%05d", prefix, m.n), nil
}

func newService(patientIDs ...uuid.UUID) (*Service, *mockRepo) {
	repo := newMockRepo()
	known := make(map[uuid.UUID]bool)
	for _, id := range patientIDs {
		known[id] = true
	}
	svc := NewService(repo, &mockPatients{known: known}, &mockNumbers{}, db.PassthroughTx)
	return svc, repo
}

func newPrescription(pid uuid.UUID, quantities ...int) *Prescription {
	p := &Prescription{PatientID: pid, DoctorID: uuid.New()}
	for i, q := range quantities {
		p.Items = append(p.Items, PrescriptionItem{
			MedicationID:   uuid.New(),
			MedicationName: fmt.Sprintf("Medication %d", i+1),
			Dosage:         "500mg",
			Frequency:      "TID",
			Quantity:       q,
		})
	}
	return p
}

// -- Tests --

func TestCreate_DefaultsAndNumber(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 30)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Number != "RX-20240115-00001" {
		t.Errorf("unexpected number %q", p.Number)
	}
	if p.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", p.Status)
	}
	want := p.PrescribedDate.AddDate(0, 1, 0)
	if !p.ValidUntil.Equal(want) {
		t.Errorf("expected valid_until %s, got %s", want, p.ValidUntil)
	}
}

func TestCreate_RequiresItems(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	err := svc.Create(context.Background(), &Prescription{PatientID: pid, DoctorID: uuid.New()})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_RejectsZeroQuantityItem(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	err := svc.Create(context.Background(), newPrescription(pid, 0))
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancel_RejectsFullyDispensed(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 10)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RecordDispense(context.Background(), p.ID, p.Items[0].ID, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), p.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateStatus_RejectsCancelled(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 10)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), p.ID, StatusActive); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordDispense_PartialThenFull(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 30, 10)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.RecordDispense(context.Background(), p.ID, p.Items[0].ID, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), p.ID)
	if got.Status != StatusPartiallyDispensed {
		t.Errorf("expected PARTIALLY_DISPENSED, got %s", got.Status)
	}

	if err := svc.RecordDispense(context.Background(), p.ID, p.Items[1].ID, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = svc.Get(context.Background(), p.ID)
	if got.Status != StatusDispensed {
		t.Errorf("expected DISPENSED, got %s", got.Status)
	}
}

func TestRecordDispense_RejectsOverRemaining(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 10)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RecordDispense(context.Background(), p.ID, p.Items[0].ID, 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.RecordDispense(context.Background(), p.ID, p.Items[0].ID, 5)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordDispense_RejectsExpired(t *testing.T) {
	pid := uuid.New()
	svc, _ := newService(pid)

	p := newPrescription(pid, 10)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = func() time.Time { return time.Now().AddDate(0, 2, 0) }
	err := svc.RecordDispense(context.Background(), p.ID, p.Items[0].ID, 1)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeriveStatus(t *testing.T) {
	items := []PrescriptionItem{
		{Quantity: 10, DispensedQuantity: 0},
		{Quantity: 5, DispensedQuantity: 0},
	}
	if got := DeriveStatus(items); got != StatusActive {
		t.Errorf("expected ACTIVE, got %s", got)
	}
	items[0].DispensedQuantity = 4
	if got := DeriveStatus(items); got != StatusPartiallyDispensed {
		t.Errorf("expected PARTIALLY_DISPENSED, got %s", got)
	}
	items[0].DispensedQuantity = 10
	items[1].DispensedQuantity = 5
	if got := DeriveStatus(items); got != StatusDispensed {
		t.Errorf("expected DISPENSED, got %s", got)
	}
}
