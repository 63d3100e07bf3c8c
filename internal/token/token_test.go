package token

import (
	"reflect"
	"testing"
	"time"
)

var issued = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func sample() AttendanceToken {
	return New("sess-1", "lec-1", "CS101", "BSC-CS", "Lab 4", "2026-03-09", "10:00", "12:00", issued)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tok := sample()
	raw, err := tok.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got := Decode(raw)
	if got == nil {
		t.Fatal("Decode returned nil for a well-formed token")
	}
	if !reflect.DeepEqual(*got, tok) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, tok)
	}
	if got.Kind != Kind {
		t.Errorf("Kind: got %q, want %q", got.Kind, Kind)
	}
	if got.IssuedAt != issued.UnixMilli() {
		t.Errorf("IssuedAt: got %d, want %d", got.IssuedAt, issued.UnixMilli())
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"non-JSON text", "hello world"},
		{"truncated JSON", `{"type":"attendance","sessionId":`},
		{"JSON without identity fields", `{"foo":123}`},
		{"missing sessionId", `{"type":"attendance","lecturerId":"l","subjectCode":"s"}`},
		{"missing lecturerId", `{"type":"attendance","sessionId":"x","subjectCode":"s"}`},
		{"missing subjectCode", `{"type":"attendance","sessionId":"x","lecturerId":"l"}`},
		{"JSON array", `[1,2,3]`},
		{"bare number", `42`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decode(tc.raw); got != nil {
				t.Errorf("Decode(%q) = %+v, want nil", tc.raw, got)
			}
		})
	}
}

func TestDecodeForeignKind(t *testing.T) {
	// A payload of another type but with the identity fields still decodes;
	// the kind check belongs to the validator, not the codec.
	got := Decode(`{"type":"ticket","sessionId":"x","lecturerId":"l","subjectCode":"s"}`)
	if got == nil {
		t.Fatal("expected decode of foreign-kind payload")
	}
	if got.Kind == Kind {
		t.Errorf("Kind: got %q, want foreign kind preserved", got.Kind)
	}
}

func TestMissing(t *testing.T) {
	tok := sample()
	if m := tok.Missing(); m != nil {
		t.Errorf("complete token reported missing fields: %v", m)
	}

	tok.Venue = ""
	tok.EndTime = ""
	tok.IssuedAt = 0
	want := []string{"venue", "endTime", "timestamp"}
	if got := tok.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("Missing: got %v, want %v", got, want)
	}
}

func TestExpiredBoundary(t *testing.T) {
	tok := sample()
	window := 15 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just inside window", issued.Add(window - time.Millisecond), false},
		{"exactly at window", issued.Add(window), false},
		{"just past window", issued.Add(window + time.Millisecond), true},
		{"well past window", issued.Add(time.Hour), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tok.Expired(tc.now, window); got != tc.want {
				t.Errorf("Expired at %s: got %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestScheduledStart(t *testing.T) {
	tok := sample()
	got, err := tok.ScheduledStart(time.UTC)
	if err != nil {
		t.Fatalf("ScheduledStart: %v", err)
	}
	want := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}

	tok.Date = "today"
	if _, err := tok.ScheduledStart(time.UTC); err == nil {
		t.Error("expected parse error for malformed date")
	}
}
