package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// -- Mocks --

type mockRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.items[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (m *mockRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range m.items {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.items[p.ID] = p
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	p, ok := m.items[id]
	if !ok {
		return apperr.NotFound("patient not found")
	}
	p.Active = active
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.items {
		if p.Active {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.items {
		if p.Active && (strings.Contains(p.FirstName, query) || strings.Contains(p.LastName, query)) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) EmailExists(_ context.Context, email string, excludeID uuid.UUID) (bool, error) {
	for _, p := range m.items {
		if p.ID != excludeID && p.Email != nil && *p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) CountActive(_ context.Context) (int, error) {
	n := 0
	for _, p := range m.items {
		if p.Active {
			n++
		}
	}
	return n, nil
}

type mockNumbers struct {
	n int64
}

func (m *mockNumbers) Next(_ context.Context, prefix string) (string, error) {
	m.n++
	return fmt.Sprintf("%s-20240115-%05d", prefix, m.n), nil
}

func newService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, &mockNumbers{}, db.PassthroughTx), repo
}

func validPatient() *Patient {
	return &Patient{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		Gender:      "FEMALE",
	}
}

// -- Tests --

func TestCreate_GeneratesMRN(t *testing.T) {
	svc, _ := newService()
	p := validPatient()

	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MRN != "MRN-20240115-00001" {
		t.Errorf("expected generated MRN, got %q", p.MRN)
	}
	if !p.Active {
		t.Error("expected new patient to be active")
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	svc, _ := newService()

	err := svc.Create(context.Background(), &Patient{Gender: "FEMALE"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_InvalidGender(t *testing.T) {
	svc, _ := newService()
	p := validPatient()
	p.Gender = "UNKNOWN"

	if err := svc.Create(context.Background(), p); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newService()
	email := "jane@example.com"

	first := validPatient()
	first.Email = &email
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := validPatient()
	second.Email = &email
	err := svc.Create(context.Background(), second)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestGet_DeactivatedPatientHidden(t *testing.T) {
	svc, _ := newService()
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Get(context.Background(), p.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for deactivated patient, got %v", err)
	}

	if err := svc.Activate(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), p.ID); err != nil {
		t.Fatalf("expected patient visible after reactivation, got %v", err)
	}
}

func TestUpdate_PreservesMRN(t *testing.T) {
	svc, repo := newService()
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mrn := p.MRN

	upd := validPatient()
	upd.ID = p.ID
	upd.MRN = "MRN-99999999-99999"
	upd.FirstName = "Janet"
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.items[p.ID]
	if stored.MRN != mrn {
		t.Errorf("expected MRN unchanged (%s), got %s", mrn, stored.MRN)
	}
	if stored.FirstName != "Janet" {
		t.Errorf("expected updated first name, got %s", stored.FirstName)
	}
}

func TestUpdate_MissingPatient(t *testing.T) {
	svc, _ := newService()
	p := validPatient()
	p.ID = uuid.New()

	if err := svc.Update(context.Background(), p); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPatient_Age(t *testing.T) {
	p := &Patient{DateOfBirth: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)}
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if got := p.Age(now); got != 33 {
		t.Errorf("expected 33 before birthday, got %d", got)
	}
	now = time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	if got := p.Age(now); got != 34 {
		t.Errorf("expected 34 after birthday, got %d", got)
	}
}
