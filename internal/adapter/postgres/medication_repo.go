package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medreminder/internal/domain"

	"github.com/lib/pq"
)

var _ domain.MedicationRepository = (*DB)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const medicationColumns = "id, user_id, name, dosage, start_date, end_date, times, created_at"

// CreateMedication inserts a medication and any ledger entries it already carries.
func (d *DB) CreateMedication(ctx context.Context, m domain.Medication) (int64, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO medications (user_id, name, dosage, start_date, end_date, times, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;",
		m.UserID, m.Name, m.Dosage,
		m.Schedule.StartDate.Format(domain.DayLayout),
		m.Schedule.EndDate.Format(domain.DayLayout),
		domain.FormatTimes(m.Schedule.Times),
		m.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert medication: %w", err)
	}
	if err := upsertOutcomes(ctx, tx, id, m.Taken); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetMedication loads one of the user's medications with its ledger.
func (d *DB) GetMedication(ctx context.Context, userID, id int64) (*domain.Medication, error) {
	m, err := getMedication(ctx, d.sql, userID, id, false)
	if err != nil {
		return nil, err
	}
	if err := loadLedgers(ctx, d.sql, []*domain.Medication{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMedications loads all of the user's medications ordered by ID.
func (d *DB) ListMedications(ctx context.Context, userID int64) ([]domain.Medication, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+medicationColumns+" FROM medications WHERE user_id = $1 ORDER BY id;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*domain.Medication, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := loadLedgers(ctx, d.sql, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceSchedule overwrites the schedule columns. Ledger rows are kept.
func (d *DB) ReplaceSchedule(ctx context.Context, userID, id int64, s domain.Schedule) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE medications SET start_date = $1, end_date = $2, times = $3 WHERE id = $4 AND user_id = $5;",
		s.StartDate.Format(domain.DayLayout), s.EndDate.Format(domain.DayLayout), domain.FormatTimes(s.Times),
		id, userID,
	)
	return expectOne(res, err)
}

// DeleteMedication removes a medication. Its dose records cascade.
func (d *DB) DeleteMedication(ctx context.Context, userID, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM medications WHERE id = $1 AND user_id = $2;", id, userID)
	return expectOne(res, err)
}

// ApplyOutcomes locks the medication row, runs fn on the loaded medication
// and persists the ledger entries fn added or changed in the same transaction.
func (d *DB) ApplyOutcomes(ctx context.Context, userID, id int64, fn func(m *domain.Medication) error) (*domain.Medication, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	m, err := getMedication(ctx, tx, userID, id, true)
	if err != nil {
		return nil, err
	}
	if err := loadLedgers(ctx, tx, []*domain.Medication{m}); err != nil {
		return nil, err
	}

	before := m.Taken.Clone()
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := upsertOutcomes(ctx, tx, m.ID, m.Taken.Changes(before)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

func getMedication(ctx context.Context, q queryer, userID, id int64, lock bool) (*domain.Medication, error) {
	query := "SELECT " + medicationColumns + " FROM medications WHERE id = $1 AND user_id = $2"
	if lock {
		query += " FOR UPDATE"
	}
	m, err := scanMedication(q.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedication(row scanner) (*domain.Medication, error) {
	var (
		m          domain.Medication
		start, end time.Time
		times      string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &start, &end, &times, &m.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseTimes(times)
	if err != nil {
		return nil, fmt.Errorf("medication %d: %w", m.ID, err)
	}
	m.Schedule = domain.Schedule{StartDate: domain.Day(start), EndDate: domain.Day(end), Times: parsed}
	m.Taken = domain.TakenLedger{}
	return &m, nil
}

func loadLedgers(ctx context.Context, q queryer, meds []*domain.Medication) error {
	if len(meds) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Medication, len(meds))
	ids := make([]int64, 0, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT medication_id, dose_key, taken FROM dose_records WHERE medication_id = ANY($1);",
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load dose records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			medID int64
			key   string
			taken bool
		)
		if err := rows.Scan(&medID, &key, &taken); err != nil {
			return err
		}
		if m, ok := byID[medID]; ok {
			m.Taken[key] = taken
		}
	}
	return rows.Err()
}

func upsertOutcomes(ctx context.Context, tx *sql.Tx, medicationID int64, outcomes map[string]bool) error {
	if len(outcomes) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dose_records (medication_id, dose_key, taken, recorded_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (medication_id, dose_key) DO UPDATE SET taken = EXCLUDED.taken, recorded_at = EXCLUDED.recorded_at;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, taken := range outcomes {
		if _, err := stmt.ExecContext(ctx, medicationID, key, taken, now); err != nil {
			return fmt.Errorf("record dose %s: %w", key, err)
		}
	}
	return nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
