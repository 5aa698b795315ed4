// Package sequence issues human-readable business numbers of the form
// PREFIX-YYYYMMDD-NNNNN (e.g. INV-20240115-00042). Counters live in the
// business_sequences table, one row per prefix and day, advanced with a
// single upsert so numbers are unique across concurrent callers, restarts,
// and replicas.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

// Well-known prefixes.
const (
	PrefixMRN          = "MRN"
	PrefixAppointment  = "APT"
	PrefixRecord       = "REC"
	PrefixPrescription = "RX"
	PrefixLabOrder     = "LAB"
	PrefixInvoice      = "INV"
	PrefixPayment      = "PAY"
)

// Source issues the next business number for a prefix. Domain services
// depend on this interface so tests can substitute a fixed generator.
type Source interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type Generator struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewGenerator(pool *pgxpool.Pool) *Generator {
	return &Generator{pool: pool, now: time.Now}
}

// Next advances the counter for (prefix, today) and returns the formatted
// number. When called inside a service transaction the increment joins that
// transaction, so a rolled-back operation does not burn a visible number
// gap beyond what the database sequence semantics already allow.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	today := g.now().UTC()

	var n int64
	row := g.queryRow(ctx, `
		INSERT INTO business_sequences (prefix, seq_date, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, seq_date)
		DO UPDATE SET last_value = business_sequences.last_value + 1
		RETURNING last_value`,
		prefix, today.Format("2006-01-02"))
	if err := row.Scan(&n); err != nil {
		return "", fmt.Errorf("next %s sequence: %w", prefix, err)
	}

	return Format(prefix, today, n), nil
}

func (g *Generator) queryRow(ctx context.Context, sql string, args ...interface{}) row {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return g.pool.QueryRow(ctx, sql, args...)
}

type row interface {
	Scan(dest ...interface{}) error
}

// Format renders a business number for the given prefix, date, and counter
// value. The counter wraps into five digits; values past 99999 simply widen
// the field rather than collide.
func Format(prefix string, t time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, t.Format("20060102"), n)
}
