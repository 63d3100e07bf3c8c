package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qrattend/internal/token"
)

// Repository persists attendance sessions in Postgres. The token is stored
// as the exact JSON it was issued with so the QR view re-renders the same
// payload byte for byte.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, issuer_id, issuer_name, subject_code, subject_name, course_code,
	venue, session_date, start_time, end_time, token, active, created_at, expires_at`

// Create inserts a new session row.
func (r *Repository) Create(ctx context.Context, s Session) error {
	raw, err := s.Token.Encode()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, s.ID, s.IssuerID, s.IssuerName, s.SubjectCode, s.SubjectName, s.CourseCode,
		s.Venue, s.Date, s.StartTime, s.EndTime, raw, s.Active, s.CreatedAt, s.ExpiresAt)
	return err
}

// Get returns a session by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions WHERE id = $1
	`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Deactivate clears the active flag. Rows already inactive are untouched,
// so repeating the call is a no-op.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET active = FALSE WHERE id = $1
	`, id)
	return err
}

// DeactivateExpired clears the active flag on every session past its
// expiry. Returns the number of sessions swept.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET active = FALSE
		WHERE active = TRUE AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByIssuer returns a lecturer's sessions, newest first.
func (r *Repository) ListByIssuer(ctx context.Context, issuerID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE issuer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, issuerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var raw string
	if err := row.Scan(&s.ID, &s.IssuerID, &s.IssuerName, &s.SubjectCode, &s.SubjectName,
		&s.CourseCode, &s.Venue, &s.Date, &s.StartTime, &s.EndTime, &raw,
		&s.Active, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if tok := token.Decode(raw); tok != nil {
		s.Token = *tok
	}
	return &s, nil
}
