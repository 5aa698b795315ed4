package records

import (
	"context"
	"errors"

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

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, number, patient_id, doctor_id, appointment_id, type,
	chief_complaint, symptoms, diagnosis, treatment_plan, vital_signs,
	physical_examination, notes, follow_up_date, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.Number, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.Type,
		&m.ChiefComplaint, &m.Symptoms, &m.Diagnosis, &m.TreatmentPlan, &m.VitalSigns,
		&m.PhysicalExamination, &m.Notes, &m.FollowUpDate, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medical record not found")
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_records (id, number, patient_id, doctor_id, appointment_id, type,
			chief_complaint, symptoms, diagnosis, treatment_plan, vital_signs,
			physical_examination, notes, follow_up_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		m.ID, m.Number, m.PatientID, m.DoctorID, m.AppointmentID, m.Type,
		m.ChiefComplaint, m.Symptoms, m.Diagnosis, m.TreatmentPlan, m.VitalSigns,
		m.PhysicalExamination, m.Notes, m.FollowUpDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *MedicalRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET type=$2, chief_complaint=$3, symptoms=$4, diagnosis=$5,
			treatment_plan=$6, vital_signs=$7, physical_examination=$8, notes=$9,
			follow_up_date=$10, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Type, m.ChiefComplaint, m.Symptoms, m.Diagnosis,
		m.TreatmentPlan, m.VitalSigns, m.PhysicalExamination, m.Notes, m.FollowUpDate)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medical record not found")
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectRecords(rows, total)
}

func (r *repoPG) SearchByDiagnosis(ctx context.Context, term string, limit, offset int) ([]*MedicalRecord, int, error) {
	pattern := "%" + term + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE diagnosis ILIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE diagnosis ILIKE $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectRecords(rows, total)
}

func collectRecords(rows pgx.Rows, total int) ([]*MedicalRecord, int, error) {
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
