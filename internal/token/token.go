// Package token implements the attendance QR payload codec. A token is a
// plain JSON document with no signature; its integrity rests on being
// redeemed over an authenticated channel to a trusted store.
package token

import (
	"encoding/json"
	"time"
)

// Kind is the declared type of every attendance payload. Scans carrying any
// other type are rejected by the validator.
const Kind = "attendance"

// DefaultTTL is the redemption window measured from issuance.
const DefaultTTL = 15 * time.Minute

// AttendanceToken is the QR wire payload.
type AttendanceToken struct {
	Kind        string `json:"type"`
	SessionID   string `json:"sessionId"`
	LecturerID  string `json:"lecturerId"`
	SubjectCode string `json:"subjectCode"`
	CourseCode  string `json:"courseCode"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`      // YYYY-MM-DD
	StartTime   string `json:"startTime"` // HH:MM
	EndTime     string `json:"endTime"`   // HH:MM
	IssuedAt    int64  `json:"timestamp"` // epoch millis
}

// New mints a token for a session, stamping the issuance clock. The
// scheduled window (date/start/end) is descriptive; IssuedAt alone anchors
// redemption expiry.
func New(sessionID, lecturerID, subjectCode, courseCode, venue, date, startTime, endTime string, now time.Time) AttendanceToken {
	return AttendanceToken{
		Kind:        Kind,
		SessionID:   sessionID,
		LecturerID:  lecturerID,
		SubjectCode: subjectCode,
		CourseCode:  courseCode,
		Venue:       venue,
		Date:        date,
		StartTime:   startTime,
		EndTime:     endTime,
		IssuedAt:    now.UnixMilli(),
	}
}

// Encode renders the token as its transport string.
func (t AttendanceToken) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a scanned transport string. It returns nil, never an error,
// on malformed input or on a payload lacking the identifying fields
// (sessionId, lecturerId, subjectCode); the caller treats nil as "not an
// attendance code".
func Decode(raw string) *AttendanceToken {
	if raw == "" {
		return nil
	}
	var t AttendanceToken
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil
	}
	if t.SessionID == "" || t.LecturerID == "" || t.SubjectCode == "" {
		return nil
	}
	return &t
}

// requiredFields pairs field names with accessors for the missing-field report.
var requiredFields = []struct {
	name string
	get  func(AttendanceToken) bool
}{
	{"sessionId", func(t AttendanceToken) bool { return t.SessionID != "" }},
	{"lecturerId", func(t AttendanceToken) bool { return t.LecturerID != "" }},
	{"subjectCode", func(t AttendanceToken) bool { return t.SubjectCode != "" }},
	{"courseCode", func(t AttendanceToken) bool { return t.CourseCode != "" }},
	{"venue", func(t AttendanceToken) bool { return t.Venue != "" }},
	{"date", func(t AttendanceToken) bool { return t.Date != "" }},
	{"startTime", func(t AttendanceToken) bool { return t.StartTime != "" }},
	{"endTime", func(t AttendanceToken) bool { return t.EndTime != "" }},
	{"timestamp", func(t AttendanceToken) bool { return t.IssuedAt > 0 }},
}

// Missing lists the required fields absent from the token, in wire order.
// An empty result means the token is structurally complete.
func (t AttendanceToken) Missing() []string {
	var missing []string
	for _, f := range requiredFields {
		if !f.get(t) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IssuedTime converts the millisecond issuance stamp to a time.Time.
func (t AttendanceToken) IssuedTime() time.Time {
	return time.UnixMilli(t.IssuedAt)
}

// Expired reports whether the redemption window has elapsed. A token is
// still valid at exactly IssuedAt+window and expired strictly after.
func (t AttendanceToken) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(t.IssuedTime()) > window
}

// ScheduledStart parses the declared session start in the given location.
// Lateness is computed against this declared start, not against IssuedAt, so
// a session created late already accrues lateness risk.
func (t AttendanceToken) ScheduledStart(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02 15:04", t.Date+" "+t.StartTime, loc)
}
