// Package redeem validates scanned attendance tokens and writes the
// resulting attendance records. Redemption is two-phase: Validate runs the
// read-only rejection checks, Confirm performs the single write after the
// student acknowledges.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"qrattend/internal/metrics"
	"qrattend/internal/queue"
	"qrattend/internal/token"
)

// Validated is the outcome of phase one, carried into Confirm. Nothing has
// been written yet when the caller holds one of these.
type Validated struct {
	Token     token.AttendanceToken `json:"token"`
	StudentID string                `json:"studentId"`
}

// Student identifies the redeeming student for the record write.
type Student struct {
	ID     string
	Name   string
	Number string
}

// Validator enforces the redemption rules.
type Validator struct {
	store  Store
	events queue.Queue
	ttl    time.Duration
	grace  time.Duration
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewValidator creates a validator. ttl is the redemption window from token
// issuance; grace is how far past the declared start a redemption still
// counts as present.
func NewValidator(store Store, events queue.Queue, ttl, grace time.Duration, logger *zap.Logger) *Validator {
	if ttl <= 0 {
		ttl = token.DefaultTTL
	}
	if grace < 0 {
		grace = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		store:  store,
		events: events,
		ttl:    ttl,
		grace:  grace,
		loc:    time.Local,
		now:    time.Now,
		logger: logger,
	}
}

// Validate runs the ordered rejection checks against a raw scan string.
// First failure wins. It performs no writes; a non-nil error means the
// store was unreachable and the scan is not consumed.
func (v *Validator) Validate(ctx context.Context, raw, studentID string) (*Validated, *Rejection, error) {
	tok := token.Decode(raw)
	if tok == nil {
		metrics.Redemptions.WithLabelValues(string(OutcomeInvalidCode)).Inc()
		return nil, reject(OutcomeInvalidCode), nil
	}

	if tok.Kind != token.Kind {
		metrics.Redemptions.WithLabelValues(string(OutcomeWrongCodeType)).Inc()
		return nil, reject(OutcomeWrongCodeType), nil
	}

	if missing := tok.Missing(); len(missing) > 0 {
		metrics.Redemptions.WithLabelValues(string(OutcomeCorruptCode)).Inc()
		rej := reject(OutcomeCorruptCode)
		rej.MissingFields = missing
		return nil, rej, nil
	}

	if tok.Expired(v.now(), v.ttl) {
		metrics.Redemptions.WithLabelValues(string(OutcomeExpired)).Inc()
		return nil, reject(OutcomeExpired), nil
	}

	exists, err := v.store.RecordExists(ctx, tok.SessionID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		metrics.Redemptions.WithLabelValues(string(OutcomeAlreadyRedeemed)).Inc()
		return nil, reject(OutcomeAlreadyRedeemed), nil
	}

	return &Validated{Token: *tok, StudentID: studentID}, nil, nil
}

// Confirm commits a validated redemption: classifies present vs. late and
// writes the record. A concurrent redemption of the same pair loses to the
// unique index and comes back as AlreadyRedeemed. A store failure is a
// transient error; the student may rescan.
func (v *Validator) Confirm(ctx context.Context, val *Validated, student Student) (Record, *Rejection, error) {
	now := v.now()
	rec := Record{
		SessionID:     val.Token.SessionID,
		StudentID:     student.ID,
		StudentName:   student.Name,
		StudentNumber: student.Number,
		Status:        v.classify(val.Token, now),
		Timestamp:     now,
	}

	rec, err := v.store.CreateRecord(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			metrics.Redemptions.WithLabelValues(string(OutcomeAlreadyRedeemed)).Inc()
			return Record{}, reject(OutcomeAlreadyRedeemed), nil
		}
		return Record{}, nil, fmt.Errorf("write record: %w", err)
	}

	metrics.Redemptions.WithLabelValues(string(OutcomeOK)).Inc()
	v.logger.Info("attendance recorded",
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.String("status", rec.Status))

	if v.events != nil {
		if err := v.events.Publish(ctx, queue.Message{Type: queue.TypeRedeemed, Body: []byte(rec.SessionID)}); err != nil {
			v.logger.Warn("redemption event publish failed", zap.Error(err))
		}
	}
	return rec, nil, nil
}

// ListForStudent returns the student's attendance history.
func (v *Validator) ListForStudent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return v.store.ListForStudent(ctx, studentID, limit)
}

// classify computes present vs. late against the session's declared start,
// not against issuance. Exactly at start+grace is still present; strictly
// later is late. An unparseable schedule yields present, since lateness
// cannot be established.
func (v *Validator) classify(tok token.AttendanceToken, now time.Time) string {
	start, err := tok.ScheduledStart(v.loc)
	if err != nil {
		v.logger.Warn("unparseable session schedule, recording present",
			zap.String("session_id", tok.SessionID),
			zap.String("date", tok.Date),
			zap.String("start", tok.StartTime))
		return StatusPresent
	}
	if now.After(start.Add(v.grace)) {
		return StatusLate
	}
	return StatusPresent
}
