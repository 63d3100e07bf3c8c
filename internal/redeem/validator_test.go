package redeem

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"qrattend/internal/token"
)

type memStore struct {
	records map[string]Record // keyed session_id|student_id
	failing bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

var errStoreDown = errors.New("store unavailable")

func (m *memStore) RecordExists(_ context.Context, sessionID, studentID string) (bool, error) {
	if m.failing {
		return false, errStoreDown
	}
	_, ok := m.records[sessionID+"|"+studentID]
	return ok, nil
}

func (m *memStore) CreateRecord(_ context.Context, rec Record) (Record, error) {
	if m.failing {
		return Record{}, errStoreDown
	}
	key := rec.SessionID + "|" + rec.StudentID
	if _, ok := m.records[key]; ok {
		return Record{}, ErrDuplicate
	}
	rec.ID = "rec-" + key
	m.records[key] = rec
	return rec, nil
}

func (m *memStore) ListForStudent(_ context.Context, studentID string, _ int) ([]Record, error) {
	var res []Record
	for _, r := range m.records {
		if r.StudentID == studentID {
			res = append(res, r)
		}
	}
	return res, nil
}

// Session scheduled 10:00-12:00 UTC, token issued at 10:00 sharp.
var t0 = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func issueToken() token.AttendanceToken {
	return token.New("sess-1", "lec-1", "CS101", "BSC-CS", "Lab 4", "2026-03-09", "10:00", "12:00", t0)
}

func rawToken(t *testing.T) string {
	t.Helper()
	raw, err := issueToken().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return raw
}

func newTestValidator(store Store, at time.Time) *Validator {
	v := NewValidator(store, nil, 15*time.Minute, 15*time.Minute, nil)
	v.loc = time.UTC
	v.now = func() time.Time { return at }
	return v
}

func TestValidateRejectionOrder(t *testing.T) {
	store := newMemStore()
	tests := []struct {
		name    string
		raw     string
		want    Outcome
		missing []string
	}{
		{"empty scan", "", OutcomeInvalidCode, nil},
		{"non-JSON", "WIFI:S:campus;;", OutcomeInvalidCode, nil},
		{"foreign payload", `{"foo":123}`, OutcomeInvalidCode, nil},
		{"wrong kind", `{"type":"ticket","sessionId":"s","lecturerId":"l","subjectCode":"c"}`, OutcomeWrongCodeType, nil},
		{
			"corrupt payload",
			`{"type":"attendance","sessionId":"s","lecturerId":"l","subjectCode":"c"}`,
			OutcomeCorruptCode,
			[]string{"courseCode", "venue", "date", "startTime", "endTime", "timestamp"},
		},
	}

	v := newTestValidator(store, t0.Add(time.Minute))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			val, rej, err := v.Validate(context.Background(), tc.raw, "stu-1")
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if val != nil {
				t.Fatal("expected rejection, got validated token")
			}
			if rej.Outcome != tc.want {
				t.Errorf("outcome: got %s, want %s", rej.Outcome, tc.want)
			}
			if rej.Message == "" {
				t.Error("rejection carries no message")
			}
			if tc.missing != nil && !reflect.DeepEqual(rej.MissingFields, tc.missing) {
				t.Errorf("missing fields: got %v, want %v", rej.MissingFields, tc.missing)
			}
		})
	}
}

func TestRedemptionScenario(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	raw := rawToken(t)

	// T0+10m: first redemption succeeds, on time.
	v := newTestValidator(store, t0.Add(10*time.Minute))
	val, rej, err := v.Validate(ctx, raw, "stu-1")
	if err != nil || rej != nil {
		t.Fatalf("Validate: err=%v rej=%+v", err, rej)
	}
	rec, rej, err := v.Confirm(ctx, val, Student{ID: "stu-1", Name: "Ada Osei", Number: "S2026-042"})
	if err != nil || rej != nil {
		t.Fatalf("Confirm: err=%v rej=%+v", err, rej)
	}
	if rec.Status != StatusPresent {
		t.Errorf("status: got %s, want present", rec.Status)
	}
	if rec.ID == "" {
		t.Error("record has no id")
	}

	// T0+11m: same student again is rejected at validate time.
	v = newTestValidator(store, t0.Add(11*time.Minute))
	_, rej, err = v.Validate(ctx, raw, "stu-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rej == nil || rej.Outcome != OutcomeAlreadyRedeemed {
		t.Errorf("got %+v, want AlreadyRedeemed", rej)
	}

	// T0+16m: a different student is past the redemption window.
	v = newTestValidator(store, t0.Add(16*time.Minute))
	_, rej, err = v.Validate(ctx, raw, "stu-2")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rej == nil || rej.Outcome != OutcomeExpired {
		t.Errorf("got %+v, want Expired", rej)
	}
}

func TestLateBoundary(t *testing.T) {
	// Grace runs until 10:15 for a 10:00 start.
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"exactly at grace boundary", t0.Add(15 * time.Minute), StatusPresent},
		{"one millisecond past", t0.Add(15*time.Minute + time.Millisecond), StatusLate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestValidator(newMemStore(), tc.at)
			if got := v.classify(issueToken(), tc.at); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLateUsesDeclaredStart(t *testing.T) {
	// Token issued 20 minutes after the declared start: the grace window is
	// measured from the declared start, so the very first redemption is
	// already late.
	tok := token.New("sess-2", "lec-1", "CS101", "BSC-CS", "Lab 4", "2026-03-09", "10:00", "12:00", t0.Add(20*time.Minute))
	at := t0.Add(21 * time.Minute)
	v := newTestValidator(newMemStore(), at)
	if got := v.classify(tok, at); got != StatusLate {
		t.Errorf("got %s, want late", got)
	}
}

func TestConfirmDuplicateRace(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	raw := rawToken(t)

	v := newTestValidator(store, t0.Add(5*time.Minute))
	val1, _, err := v.Validate(ctx, raw, "stu-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	val2, _, err := v.Validate(ctx, raw, "stu-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Both validations passed; the second confirm loses to the unique index.
	if _, rej, err := v.Confirm(ctx, val1, Student{ID: "stu-1"}); err != nil || rej != nil {
		t.Fatalf("first Confirm: err=%v rej=%+v", err, rej)
	}
	_, rej, err := v.Confirm(ctx, val2, Student{ID: "stu-1"})
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if rej == nil || rej.Outcome != OutcomeAlreadyRedeemed {
		t.Errorf("got %+v, want AlreadyRedeemed", rej)
	}
}

func TestStoreFailureIsTransient(t *testing.T) {
	store := newMemStore()
	store.failing = true
	ctx := context.Background()
	raw := rawToken(t)

	v := newTestValidator(store, t0.Add(time.Minute))
	_, rej, err := v.Validate(ctx, raw, "stu-1")
	if err == nil {
		t.Fatal("expected store error from Validate")
	}
	if rej != nil {
		t.Errorf("transient failure must not produce a user rejection, got %+v", rej)
	}

	// Scan is not consumed: once the store recovers the same token redeems.
	store.failing = false
	val, rej, err := v.Validate(ctx, raw, "stu-1")
	if err != nil || rej != nil {
		t.Fatalf("Validate after recovery: err=%v rej=%+v", err, rej)
	}
	if _, rej, err := v.Confirm(ctx, val, Student{ID: "stu-1"}); err != nil || rej != nil {
		t.Fatalf("Confirm after recovery: err=%v rej=%+v", err, rej)
	}
}

func TestExpiryJustInsideWindow(t *testing.T) {
	v := newTestValidator(newMemStore(), t0.Add(15*time.Minute))
	val, rej, err := v.Validate(context.Background(), rawToken(t), "stu-9")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rej != nil {
		t.Errorf("token at exactly TTL must still validate, got %+v", rej)
	}
	if val == nil {
		t.Fatal("expected validated token")
	}
}
