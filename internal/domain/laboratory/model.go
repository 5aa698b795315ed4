package laboratory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderPending         = "PENDING"
	OrderSampleCollected = "SAMPLE_COLLECTED"
	OrderInProgress      = "IN_PROGRESS"
	OrderCompleted       = "COMPLETED"
	OrderCancelled       = "CANCELLED"
)

const (
	ItemPending    = "PENDING"
	ItemInProgress = "IN_PROGRESS"
	ItemCompleted  = "COMPLETED"
	ItemCancelled  = "CANCELLED"
)

const (
	PriorityRoutine = "ROUTINE"
	PriorityUrgent  = "URGENT"
	PriorityStat    = "STAT"
)

const (
	FlagNormal       = "NORMAL"
	FlagLow          = "LOW"
	FlagHigh         = "HIGH"
	FlagCriticalLow  = "CRITICAL_LOW"
	FlagCriticalHigh = "CRITICAL_HIGH"
	FlagAbnormal     = "ABNORMAL"
)

var validCategories = map[string]bool{
	"HEMATOLOGY": true, "CHEMISTRY": true, "MICROBIOLOGY": true,
	"IMMUNOLOGY": true, "URINALYSIS": true, "PATHOLOGY": true,
	"RADIOLOGY": true, "CARDIOLOGY": true, "ENDOCRINOLOGY": true,
	"TOXICOLOGY": true, "GENETICS": true, "OTHER": true,
}

var validPriorities = map[string]bool{
	PriorityRoutine: true, PriorityUrgent: true, PriorityStat: true,
}

var validFlags = map[string]bool{
	FlagNormal: true, FlagLow: true, FlagHigh: true,
	FlagCriticalLow: true, FlagCriticalHigh: true, FlagAbnormal: true,
}

// LabTest is a catalog entry describing a test the lab can run.
type LabTest struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	SampleType  string          `db:"sample_type" json:"sample_type"`
	Price       decimal.Decimal `db:"price" json:"price"`
	NormalRange *string         `db:"normal_range" json:"normal_range,omitempty"`
	Description *string         `db:"description" json:"description,omitempty"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type LabOrder struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	Number            string         `db:"number" json:"number"`
	PatientID         uuid.UUID      `db:"patient_id" json:"patient_id"`
	DoctorID          uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	RecordID          *uuid.UUID     `db:"record_id" json:"record_id,omitempty"`
	Status            string         `db:"status" json:"status"`
	Priority          string         `db:"priority" json:"priority"`
	OrderedAt         time.Time      `db:"ordered_at" json:"ordered_at"`
	SampleCollectedAt *time.Time     `db:"sample_collected_at" json:"sample_collected_at,omitempty"`
	SampleCollectedBy *uuid.UUID     `db:"sample_collected_by" json:"sample_collected_by,omitempty"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	Items             []LabOrderItem `json:"items"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

type LabOrderItem struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	OrderID  uuid.UUID  `db:"order_id" json:"order_id"`
	TestID   uuid.UUID  `db:"test_id" json:"test_id"`
	TestCode string     `db:"test_code" json:"test_code"`
	TestName string     `db:"test_name" json:"test_name"`
	Status   string     `db:"status" json:"status"`
	Result   *LabResult `json:"result,omitempty"`
}

type LabResult struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrderItemID    uuid.UUID  `db:"order_item_id" json:"order_item_id"`
	Value          string     `db:"value" json:"value"`
	Unit           *string    `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string    `db:"reference_range" json:"reference_range,omitempty"`
	Flag           string     `db:"flag" json:"flag"`
	Abnormal       bool       `db:"abnormal" json:"abnormal"`
	Critical       bool       `db:"critical" json:"critical"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	PerformedBy    uuid.UUID  `db:"performed_by" json:"performed_by"`
	PerformedAt    time.Time  `db:"performed_at" json:"performed_at"`
	Verified       bool       `db:"verified" json:"verified"`
	VerifiedBy     *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt     *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// DeriveOrderStatus recomputes an order's status from its items once results
// start arriving. The order completes when every item has either a result or
// was cancelled. Sample-collection transitions are handled separately so the
// current status is passed through when no item has progressed yet.
func DeriveOrderStatus(current string, items []LabOrderItem) string {
	allDone := len(items) > 0
	anyProgress := false
	for _, it := range items {
		switch it.Status {
		case ItemCompleted:
			anyProgress = true
		case ItemInProgress:
			anyProgress = true
			allDone = false
		case ItemCancelled:
			// terminal, counts as done
		default:
			allDone = false
		}
	}
	switch {
	case allDone:
		return OrderCompleted
	case anyProgress:
		return OrderInProgress
	default:
		return current
	}
}
