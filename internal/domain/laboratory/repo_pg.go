package laboratory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG backs all three laboratory repositories with one pgx store.
func NewRepoPG(pool *pgxpool.Pool) *repoPG { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Tests --

const testCols = `id, code, name, category, sample_type, price, normal_range,
	description, active, created_at, updated_at`

func scanTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.SampleType, &t.Price,
		&t.NormalRange, &t.Description, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lab test not found")
	}
	return &t, err
}

func (r *repoPG) CreateTest(ctx context.Context, t *LabTest) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_tests (id, code, name, category, sample_type, price,
			normal_range, description, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Code, t.Name, t.Category, t.SampleType, t.Price,
		t.NormalRange, t.Description, t.Active)
	return err
}

func (r *repoPG) GetTestByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+testCols+` FROM lab_tests WHERE id = $1`, id))
}

func (r *repoPG) GetTestByCode(ctx context.Context, code string) (*LabTest, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+testCols+` FROM lab_tests WHERE code = $1`, code))
}

func (r *repoPG) UpdateTest(ctx context.Context, t *LabTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_tests SET name=$2, category=$3, sample_type=$4, price=$5,
			normal_range=$6, description=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Category, t.SampleType, t.Price,
		t.NormalRange, t.Description, t.Active)
	return err
}

func (r *repoPG) CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lab_tests WHERE code = $1 AND id <> $2)`,
		code, excludeID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListTests(ctx context.Context, category string, activeOnly bool, limit, offset int) ([]*LabTest, int, error) {
	where := `($1 = '' OR category = $1) AND (NOT $2 OR active)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_tests WHERE `+where, category, activeOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+testCols+` FROM lab_tests WHERE `+where+` ORDER BY code LIMIT $3 OFFSET $4`,
		category, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LabTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// -- Orders --

const orderCols = `id, number, patient_id, doctor_id, record_id, status, priority,
	ordered_at, sample_collected_at, sample_collected_by, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*LabOrder, error) {
	var o LabOrder
	err := row.Scan(&o.ID, &o.Number, &o.PatientID, &o.DoctorID, &o.RecordID, &o.Status,
		&o.Priority, &o.OrderedAt, &o.SampleCollectedAt, &o.SampleCollectedBy, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lab order not found")
	}
	return &o, err
}

func (r *repoPG) CreateOrder(ctx context.Context, o *LabOrder) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_orders (id, number, patient_id, doctor_id, record_id, status,
			priority, ordered_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.Number, o.PatientID, o.DoctorID, o.RecordID, o.Status,
		o.Priority, o.OrderedAt, o.Notes)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.New()
		it.OrderID = o.ID
		_, err = r.conn(ctx).Exec(ctx, `
			INSERT INTO lab_order_items (id, order_id, test_id, test_code, test_name, status)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, it.OrderID, it.TestID, it.TestCode, it.TestName, it.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetOrderByID(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM lab_orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repoPG) loadItems(ctx context.Context, o *LabOrder) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, order_id, test_id, test_code, test_name, status
		 FROM lab_order_items WHERE order_id = $1 ORDER BY test_code`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it LabOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TestID, &it.TestCode, &it.TestName, &it.Status); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range o.Items {
		res, err := r.GetResultByItem(ctx, o.Items[i].ID)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return err
		}
		o.Items[i].Result = res
	}
	return nil
}

func (r *repoPG) UpdateOrder(ctx context.Context, o *LabOrder) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_orders SET status=$2, sample_collected_at=$3, sample_collected_by=$4,
			notes=$5, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Status, o.SampleCollectedAt, o.SampleCollectedBy, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lab order not found")
	}
	return nil
}

func (r *repoPG) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_order_items SET status = $2 WHERE id = $1`, itemID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lab order item not found")
	}
	return nil
}

func (r *repoPG) GetItemByID(ctx context.Context, itemID uuid.UUID) (*LabOrderItem, error) {
	var it LabOrderItem
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, order_id, test_id, test_code, test_name, status
		 FROM lab_order_items WHERE id = $1`, itemID).
		Scan(&it.ID, &it.OrderID, &it.TestID, &it.TestCode, &it.TestName, &it.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lab order item not found")
	}
	return &it, err
}

func (r *repoPG) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error) {
	return r.listOrders(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *repoPG) ListOrdersByStatus(ctx context.Context, status string, limit, offset int) ([]*LabOrder, int, error) {
	return r.listOrders(ctx, `status = $1`, status, limit, offset)
}

func (r *repoPG) listOrders(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*LabOrder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_orders WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+orderCols+` FROM lab_orders WHERE `+where+
			` ORDER BY ordered_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*LabOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *repoPG) CountOrdersByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_orders WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *repoPG) CountOrderedOn(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_orders WHERE ordered_at >= $1 AND ordered_at < $2`,
		start, start.AddDate(0, 0, 1)).Scan(&n)
	return n, err
}

// -- Results --

const resultCols = `id, order_item_id, value, unit, reference_range, flag, abnormal,
	critical, notes, performed_by, performed_at, verified, verified_by, verified_at`

func scanResult(row pgx.Row) (*LabResult, error) {
	var res LabResult
	err := row.Scan(&res.ID, &res.OrderItemID, &res.Value, &res.Unit, &res.ReferenceRange,
		&res.Flag, &res.Abnormal, &res.Critical, &res.Notes, &res.PerformedBy,
		&res.PerformedAt, &res.Verified, &res.VerifiedBy, &res.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lab result not found")
	}
	return &res, err
}

func (r *repoPG) CreateResult(ctx context.Context, res *LabResult) error {
	res.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_results (id, order_item_id, value, unit, reference_range, flag,
			abnormal, critical, notes, performed_by, performed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		res.ID, res.OrderItemID, res.Value, res.Unit, res.ReferenceRange, res.Flag,
		res.Abnormal, res.Critical, res.Notes, res.PerformedBy, res.PerformedAt)
	return err
}

func (r *repoPG) GetResultByID(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	return scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM lab_results WHERE id = $1`, id))
}

func (r *repoPG) GetResultByItem(ctx context.Context, itemID uuid.UUID) (*LabResult, error) {
	return scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM lab_results WHERE order_item_id = $1`, itemID))
}

func (r *repoPG) SetVerified(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_results SET verified = TRUE, verified_by = $2, verified_at = $3 WHERE id = $1`,
		id, by, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lab result not found")
	}
	return nil
}

func (r *repoPG) ListUnverifiedCritical(ctx context.Context, limit, offset int) ([]*LabResult, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_results WHERE critical AND NOT verified`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+resultCols+` FROM lab_results WHERE critical AND NOT verified
		 ORDER BY performed_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LabResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, rows.Err()
}
