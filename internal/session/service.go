package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"qrattend/internal/auth"
	"qrattend/internal/catalog"
	"qrattend/internal/metrics"
	"qrattend/internal/token"
)

// Validation failures surfaced to the lecturer form.
var (
	ErrUnknownSubject = errors.New("subject code not in catalog")
	ErrUnknownCourse  = errors.New("course code not in catalog")
	ErrNotFound       = errors.New("session not found")
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Deactivate(ctx context.Context, id string) error
	ListByIssuer(ctx context.Context, issuerID string, limit int) ([]Session, error)
}

// Service owns the session lifecycle.
type Service struct {
	store      Store
	catalog    catalog.Lookup
	sessionTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewService creates a lifecycle service. sessionTTL bounds how long a
// session stays renderable; it is independent of the token redemption TTL.
func NewService(store Store, cat catalog.Lookup, sessionTTL time.Duration, logger *zap.Logger) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		catalog:    cat,
		sessionTTL: sessionTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Create validates the form input against the catalog, mints the session
// token, and persists the session as active.
func (s *Service) Create(ctx context.Context, issuer auth.Identity, in CreateInput) (Session, error) {
	if in.SubjectCode == "" || in.CourseCode == "" || in.Venue == "" ||
		in.Date == "" || in.StartTime == "" || in.EndTime == "" {
		return Session{}, errors.New("all session fields are required")
	}

	subj, err := s.catalog.Subject(ctx, in.SubjectCode)
	if err != nil {
		return Session{}, fmt.Errorf("subject lookup: %w", err)
	}
	if subj == nil {
		return Session{}, ErrUnknownSubject
	}
	course, err := s.catalog.Course(ctx, in.CourseCode)
	if err != nil {
		return Session{}, fmt.Errorf("course lookup: %w", err)
	}
	if course == nil {
		return Session{}, ErrUnknownCourse
	}

	now := s.now()
	id := uuid.NewString()
	sess := Session{
		ID:          id,
		IssuerID:    issuer.ID,
		IssuerName:  issuer.Name,
		SubjectCode: subj.Code,
		SubjectName: subj.Name,
		CourseCode:  course.Code,
		Venue:       in.Venue,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Token:       token.New(id, issuer.ID, subj.Code, course.Code, in.Venue, in.Date, in.StartTime, in.EndTime, now),
		Active:      true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}

	metrics.SessionsCreated.Inc()
	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("issuer_id", issuer.ID),
		zap.String("subject", subj.Code),
		zap.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Deactivate closes a session early. Deactivating an already-inactive
// session is a no-op, not an error; once false the flag never comes back.
func (s *Service) Deactivate(ctx context.Context, issuerID, id string) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	if sess.IssuerID != issuerID {
		return ErrNotFound
	}
	if !sess.Active {
		return nil
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session deactivated", zap.String("session_id", id))
	return nil
}

// Get returns a session visible to the issuer.
func (s *Service) Get(ctx context.Context, issuerID, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.IssuerID != issuerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// ListByIssuer returns a lecturer's sessions, newest first.
func (s *Service) ListByIssuer(ctx context.Context, issuerID string, limit int) ([]Session, error) {
	return s.store.ListByIssuer(ctx, issuerID, limit)
}

// RenderQR re-renders the PNG for a session's already-issued token. The
// token is not re-minted; reopening the QR view always shows the same
// payload with the original issuance stamp.
func (s *Service) RenderQR(sess Session) ([]byte, error) {
	raw, err := sess.Token.Encode()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(raw, qrcode.Medium, 512)
}
