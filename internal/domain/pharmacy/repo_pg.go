package pharmacy

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

// NewRepoPG backs all pharmacy repositories with one pgx store.
func NewRepoPG(pool *pgxpool.Pool) *repoPG { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Medications --

const medCols = `id, code, name, generic_name, form, strength, manufacturer, unit_price,
	reorder_level, requires_prescription, controlled_substance, active, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.GenericName, &m.Form, &m.Strength,
		&m.Manufacturer, &m.UnitPrice, &m.ReorderLevel, &m.RequiresPrescription,
		&m.ControlledSubstance, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medication not found")
	}
	return &m, err
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medications (id, code, name, generic_name, form, strength, manufacturer,
			unit_price, reorder_level, requires_prescription, controlled_substance, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.Code, m.Name, m.GenericName, m.Form, m.Strength, m.Manufacturer,
		m.UnitPrice, m.ReorderLevel, m.RequiresPrescription, m.ControlledSubstance, m.Active)
	return err
}

func (r *repoPG) GetMedicationByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = $1`, id))
}

func (r *repoPG) GetMedicationByCode(ctx context.Context, code string) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE code = $1`, code))
}

func (r *repoPG) UpdateMedication(ctx context.Context, m *Medication) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medications SET name=$2, generic_name=$3, form=$4, strength=$5,
			manufacturer=$6, unit_price=$7, reorder_level=$8, requires_prescription=$9,
			controlled_substance=$10, active=$11, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Form, m.Strength, m.Manufacturer,
		m.UnitPrice, m.ReorderLevel, m.RequiresPrescription, m.ControlledSubstance, m.Active)
	return err
}

func (r *repoPG) MedicationCodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medications WHERE code = $1 AND id <> $2)`,
		code, excludeID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListMedications(ctx context.Context, search string, activeOnly bool, limit, offset int) ([]*Medication, int, error) {
	where := `($1 = '' OR name ILIKE '%' || $1 || '%' OR generic_name ILIKE '%' || $1 || '%')
		AND (NOT $2 OR active)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medications WHERE `+where, search, activeOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medCols+` FROM medications WHERE `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		search, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountActiveMedications(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medications WHERE active`).Scan(&n)
	return n, err
}

// -- Suppliers --

const supplierCols = `id, name, contact_name, phone, email, address, active, created_at, updated_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("supplier not found")
	}
	return &s, err
}

func (r *repoPG) CreateSupplier(ctx context.Context, s *Supplier) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO suppliers (id, name, contact_name, phone, email, address, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.Active)
	return err
}

func (r *repoPG) GetSupplierByID(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	return scanSupplier(r.conn(ctx).QueryRow(ctx,
		`SELECT `+supplierCols+` FROM suppliers WHERE id = $1`, id))
}

func (r *repoPG) UpdateSupplier(ctx context.Context, s *Supplier) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE suppliers SET name=$2, contact_name=$3, phone=$4, email=$5, address=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.Active)
	return err
}

func (r *repoPG) ListSuppliers(ctx context.Context, activeOnly bool, limit, offset int) ([]*Supplier, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM suppliers WHERE NOT $1 OR active`, activeOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+supplierCols+` FROM suppliers WHERE NOT $1 OR active ORDER BY name LIMIT $2 OFFSET $3`,
		activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// -- Inventory --

const batchCols = `id, medication_id, supplier_id, batch_number, quantity, reserved,
	expiry_date, unit_cost, location, status, created_at, updated_at`

func scanBatch(row pgx.Row) (*InventoryBatch, error) {
	var b InventoryBatch
	err := row.Scan(&b.ID, &b.MedicationID, &b.SupplierID, &b.BatchNumber, &b.Quantity,
		&b.Reserved, &b.ExpiryDate, &b.UnitCost, &b.Location, &b.Status,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory batch not found")
	}
	return &b, err
}

func (r *repoPG) CreateBatch(ctx context.Context, b *InventoryBatch) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_batches (id, medication_id, supplier_id, batch_number,
			quantity, reserved, expiry_date, unit_cost, location, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.MedicationID, b.SupplierID, b.BatchNumber, b.Quantity, b.Reserved,
		b.ExpiryDate, b.UnitCost, b.Location, b.Status)
	return err
}

func (r *repoPG) GetBatchByID(ctx context.Context, id uuid.UUID) (*InventoryBatch, error) {
	return scanBatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+batchCols+` FROM inventory_batches WHERE id = $1`, id))
}

func (r *repoPG) GetBatchForUpdate(ctx context.Context, id uuid.UUID) (*InventoryBatch, error) {
	return scanBatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+batchCols+` FROM inventory_batches WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateBatch(ctx context.Context, b *InventoryBatch) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_batches SET quantity=$2, reserved=$3, expiry_date=$4,
			unit_cost=$5, location=$6, status=$7, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Quantity, b.Reserved, b.ExpiryDate, b.UnitCost, b.Location, b.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("inventory batch not found")
	}
	return nil
}

func (r *repoPG) ListBatchesByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*InventoryBatch, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_batches WHERE medication_id = $1`, medicationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+batchCols+` FROM inventory_batches WHERE medication_id = $1
		 ORDER BY expiry_date LIMIT $2 OFFSET $3`,
		medicationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectBatches(rows, total)
}

func (r *repoPG) ListAllBatches(ctx context.Context) ([]*InventoryBatch, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+batchCols+` FROM inventory_batches ORDER BY expiry_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, _, err := collectBatches(rows, 0)
	return items, err
}

func collectBatches(rows pgx.Rows, total int) ([]*InventoryBatch, int, error) {
	var items []*InventoryBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

// -- Dispensings --

const dispenseCols = `id, prescription_id, prescription_item_id, medication_id, batch_id,
	quantity, status, dispensed_by, dispensed_at, notes`

func scanDispensing(row pgx.Row) (*Dispensing, error) {
	var d Dispensing
	err := row.Scan(&d.ID, &d.PrescriptionID, &d.PrescriptionItemID, &d.MedicationID,
		&d.BatchID, &d.Quantity, &d.Status, &d.DispensedBy, &d.DispensedAt, &d.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("dispensing record not found")
	}
	return &d, err
}

func (r *repoPG) CreateDispensing(ctx context.Context, d *Dispensing) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dispensings (id, prescription_id, prescription_item_id, medication_id,
			batch_id, quantity, status, dispensed_by, dispensed_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.PrescriptionID, d.PrescriptionItemID, d.MedicationID, d.BatchID,
		d.Quantity, d.Status, d.DispensedBy, d.DispensedAt, d.Notes)
	return err
}

func (r *repoPG) GetDispensingByID(ctx context.Context, id uuid.UUID) (*Dispensing, error) {
	return scanDispensing(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dispenseCols+` FROM dispensings WHERE id = $1`, id))
}

func (r *repoPG) ListDispensingsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Dispensing, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dispenseCols+` FROM dispensings WHERE prescription_id = $1 ORDER BY dispensed_at`,
		prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Dispensing
	for rows.Next() {
		d, err := scanDispensing(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) CountDispensedOn(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dispensings WHERE dispensed_at >= $1 AND dispensed_at < $2`,
		start, start.AddDate(0, 0, 1)).Scan(&n)
	return n, err
}
