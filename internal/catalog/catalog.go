// Package catalog provides read-only lookups of the institution's subject
// and course listings, consumed by session creation for code validation.
package catalog

import (
	"context"
	"database/sql"
	"errors"
)

// Subject is a teachable unit identified by its code.
type Subject struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Course is a programme identified by its code.
type Course struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Lookup resolves catalog codes. Implementations return nil, nil when a code
// is unknown; errors are reserved for store failures.
type Lookup interface {
	Subject(ctx context.Context, code string) (*Subject, error)
	Course(ctx context.Context, code string) (*Course, error)
}

// Repository implements Lookup over Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalog repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Subject returns the subject for code, or nil when not listed.
func (r *Repository) Subject(ctx context.Context, code string) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT code, name FROM subjects WHERE code = $1`, code)
	var s Subject
	if err := row.Scan(&s.Code, &s.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Course returns the course for code, or nil when not listed.
func (r *Repository) Course(ctx context.Context, code string) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT code, name FROM courses WHERE code = $1`, code)
	var c Course
	if err := row.Scan(&c.Code, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
