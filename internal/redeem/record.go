package redeem

import "time"

// Attendance statuses. Absent rows are written by back-office tooling, not
// by redemption.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
)

// Record is one student's redeemed attendance for one session. At most one
// record exists per (SessionID, StudentID); records are never mutated or
// deleted by the redemption flow.
type Record struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	StudentID     string    `json:"studentId"`
	StudentName   string    `json:"studentName"`
	StudentNumber string    `json:"studentNumber"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Notes         string    `json:"notes,omitempty"`
}
