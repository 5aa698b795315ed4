package laboratory

import (
	"context"
	"time"

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
	tests    TestRepository
	orders   OrderRepository
	results  ResultRepository
	patients PatientDirectory
	numbers  sequence.Source
	runTx    db.TxRunner
	now      func() time.Time
}

func NewService(tests TestRepository, orders OrderRepository, results ResultRepository,
	patients PatientDirectory, numbers sequence.Source, runTx db.TxRunner) *Service {
	return &Service{
		tests:    tests,
		orders:   orders,
		results:  results,
		patients: patients,
		numbers:  numbers,
		runTx:    runTx,
		now:      time.Now,
	}
}

// -- Test catalog --

func (s *Service) CreateTest(ctx context.Context, t *LabTest) error {
	if err := validateTest(t); err != nil {
		return err
	}
	exists, err := s.tests.CodeExists(ctx, t.Code, uuid.Nil)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("a lab test with this code already exists")
	}
	t.Active = true
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.tests.CreateTest(ctx, t)
	})
}

func (s *Service) UpdateTest(ctx context.Context, t *LabTest) error {
	existing, err := s.tests.GetTestByID(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Code = existing.Code
	if err := validateTest(t); err != nil {
		return err
	}
	return s.runTx(ctx, func(ctx context.Context) error {
		return s.tests.UpdateTest(ctx, t)
	})
}

func validateTest(t *LabTest) error {
	fields := map[string]string{}
	if t.Code == "" {
		fields["code"] = "is required"
	}
	if t.Name == "" {
		fields["name"] = "is required"
	}
	if !validCategories[t.Category] {
		fields["category"] = "is not a recognised category"
	}
	if t.SampleType == "" {
		fields["sample_type"] = "is required"
	}
	if t.Price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid lab test", fields)
	}
	return nil
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.tests.GetTestByID(ctx, id)
}

func (s *Service) GetTestByCode(ctx context.Context, code string) (*LabTest, error) {
	return s.tests.GetTestByCode(ctx, code)
}

func (s *Service) ListTests(ctx context.Context, category string, activeOnly bool, limit, offset int) ([]*LabTest, int, error) {
	if category != "" && !validCategories[category] {
		return nil, 0, apperr.Validation("invalid category: "+category, nil)
	}
	return s.tests.ListTests(ctx, category, activeOnly, limit, offset)
}

// -- Orders --

func (s *Service) CreateOrder(ctx context.Context, o *LabOrder, testIDs []uuid.UUID) error {
	if o.PatientID == uuid.Nil {
		return apperr.RequiredField("patient_id")
	}
	if o.DoctorID == uuid.Nil {
		return apperr.RequiredField("doctor_id")
	}
	if len(testIDs) == 0 {
		return apperr.Validation("a lab order requires at least one test", nil)
	}
	if o.Priority == "" {
		o.Priority = PriorityRoutine
	}
	if !validPriorities[o.Priority] {
		return apperr.Validation("invalid priority: "+o.Priority, nil)
	}
	if _, err := s.patients.Get(ctx, o.PatientID); err != nil {
		return err
	}

	o.Items = o.Items[:0]
	for _, id := range testIDs {
		t, err := s.tests.GetTestByID(ctx, id)
		if err != nil {
			return err
		}
		if !t.Active {
			return apperr.Conflict("lab test " + t.Code + " is no longer offered")
		}
		o.Items = append(o.Items, LabOrderItem{
			TestID:   t.ID,
			TestCode: t.Code,
			TestName: t.Name,
			Status:   ItemPending,
		})
	}

	o.Status = OrderPending
	o.OrderedAt = s.now()
	return s.runTx(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, sequence.PrefixLabOrder)
		if err != nil {
			return err
		}
		o.Number = number
		return s.orders.CreateOrder(ctx, o)
	})
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	return s.orders.GetOrderByID(ctx, id)
}

func (s *Service) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error) {
	return s.orders.ListOrdersByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListOrdersByStatus(ctx context.Context, status string, limit, offset int) ([]*LabOrder, int, error) {
	switch status {
	case OrderPending, OrderSampleCollected, OrderInProgress, OrderCompleted, OrderCancelled:
		return s.orders.ListOrdersByStatus(ctx, status, limit, offset)
	}
	return nil, 0, apperr.Validation("invalid order status: "+status, nil)
}

func (s *Service) CollectSample(ctx context.Context, orderID, byUserID uuid.UUID) (*LabOrder, error) {
	o, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderPending {
		return nil, apperr.Conflict("sample can only be collected for a pending order")
	}
	now := s.now()
	o.Status = OrderSampleCollected
	o.SampleCollectedAt = &now
	o.SampleCollectedBy = &byUserID
	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, o)
	}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*LabOrder, error) {
	o, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == OrderCompleted {
		return nil, apperr.Conflict("cannot cancel a completed lab order")
	}
	if o.Status == OrderCancelled {
		return o, nil
	}
	if err := s.runTx(ctx, func(ctx context.Context) error {
		for i := range o.Items {
			switch o.Items[i].Status {
			case ItemCompleted, ItemCancelled:
				continue
			}
			if err := s.orders.UpdateItemStatus(ctx, o.Items[i].ID, ItemCancelled); err != nil {
				return err
			}
			o.Items[i].Status = ItemCancelled
		}
		o.Status = OrderCancelled
		return s.orders.UpdateOrder(ctx, o)
	}); err != nil {
		return nil, err
	}
	return o, nil
}

// -- Results --

func (s *Service) AddResult(ctx context.Context, res *LabResult) error {
	if res.OrderItemID == uuid.Nil {
		return apperr.RequiredField("order_item_id")
	}
	if res.Value == "" {
		return apperr.RequiredField("value")
	}
	if res.PerformedBy == uuid.Nil {
		return apperr.RequiredField("performed_by")
	}
	if res.Flag == "" {
		res.Flag = FlagNormal
	}
	if !validFlags[res.Flag] {
		return apperr.Validation("invalid result flag: "+res.Flag, nil)
	}
	res.Abnormal = res.Flag != FlagNormal
	res.Critical = res.Flag == FlagCriticalLow || res.Flag == FlagCriticalHigh

	item, err := s.orders.GetItemByID(ctx, res.OrderItemID)
	if err != nil {
		return err
	}
	if item.Status == ItemCancelled {
		return apperr.Conflict("cannot record a result for a cancelled test")
	}
	if _, err := s.results.GetResultByItem(ctx, res.OrderItemID); err == nil {
		return apperr.Conflict("test already has a result")
	} else if !apperr.IsNotFound(err) {
		return err
	}

	if res.PerformedAt.IsZero() {
		res.PerformedAt = s.now()
	}
	res.Verified = false

	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.results.CreateResult(ctx, res); err != nil {
			return err
		}
		if err := s.orders.UpdateItemStatus(ctx, item.ID, ItemCompleted); err != nil {
			return err
		}
		o, err := s.orders.GetOrderByID(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if next := DeriveOrderStatus(o.Status, o.Items); next != o.Status {
			o.Status = next
			return s.orders.UpdateOrder(ctx, o)
		}
		return nil
	})
}

func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	return s.results.GetResultByID(ctx, id)
}

func (s *Service) VerifyResult(ctx context.Context, id, byUserID uuid.UUID) (*LabResult, error) {
	res, err := s.results.GetResultByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Verified {
		return nil, apperr.Conflict("result is already verified")
	}
	now := s.now()
	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.results.SetVerified(ctx, id, byUserID, now)
	}); err != nil {
		return nil, err
	}
	res.Verified = true
	res.VerifiedBy = &byUserID
	res.VerifiedAt = &now
	return res, nil
}

func (s *Service) ListUnverifiedCritical(ctx context.Context, limit, offset int) ([]*LabResult, int, error) {
	return s.results.ListUnverifiedCritical(ctx, limit, offset)
}

// -- Counts --

func (s *Service) CountPendingOrders(ctx context.Context) (int, error) {
	return s.orders.CountOrdersByStatus(ctx, OrderPending)
}

func (s *Service) CountOrderedToday(ctx context.Context) (int, error) {
	return s.orders.CountOrderedOn(ctx, s.now())
}

func (s *Service) CountUnverifiedCritical(ctx context.Context) (int, error) {
	_, total, err := s.results.ListUnverifiedCritical(ctx, 1, 0)
	return total, err
}
