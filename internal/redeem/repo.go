package redeem

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate signals an existing record for the same (session, student)
// pair. The unique index is the arbiter when two redemptions race.
var ErrDuplicate = errors.New("attendance already recorded")

// Store is the persistence surface the validator needs.
type Store interface {
	RecordExists(ctx context.Context, sessionID, studentID string) (bool, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	ListForStudent(ctx context.Context, studentID string, limit int) ([]Record, error)
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordExists reports whether the student already redeemed the session.
func (r *Repository) RecordExists(ctx context.Context, sessionID, studentID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2
		)
	`, sessionID, studentID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateRecord inserts a new record. A unique violation on
// (session_id, student_id) surfaces as ErrDuplicate.
func (r *Repository) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, student_name, student_number, status, recorded_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.SessionID, rec.StudentID, rec.StudentName, rec.StudentNumber, rec.Status, rec.Timestamp, rec.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicate
		}
		return Record{}, err
	}
	return rec, nil
}

// ListForStudent returns a student's records, newest first.
func (r *Repository) ListForStudent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, student_name, student_number, status, recorded_at, notes
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.StudentName,
			&rec.StudentNumber, &rec.Status, &rec.Timestamp, &rec.Notes); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
