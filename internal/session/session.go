// Package session implements the lecturer-side attendance session
// lifecycle: creation, QR rendering, and deactivation.
package session

import (
	"time"

	"qrattend/internal/token"
)

// Session is the canonical record of a lecturer-initiated attendance window.
// It is never deleted; expiry or explicit deactivation only clears Active.
type Session struct {
	ID          string                `json:"id"`
	IssuerID    string                `json:"issuerId"`
	IssuerName  string                `json:"issuerName"`
	SubjectCode string                `json:"subjectCode"`
	SubjectName string                `json:"subjectName"`
	CourseCode  string                `json:"courseCode"`
	Venue       string                `json:"venue"`
	Date        string                `json:"date"`
	StartTime   string                `json:"startTime"`
	EndTime     string                `json:"endTime"`
	Token       token.AttendanceToken `json:"token"`
	Active      bool                  `json:"active"`
	CreatedAt   time.Time             `json:"createdAt"`
	ExpiresAt   time.Time             `json:"expiresAt"`
}

// CreateInput carries the lecturer's form fields for a new session.
type CreateInput struct {
	SubjectCode string `json:"subject_code" binding:"required"`
	CourseCode  string `json:"course_code" binding:"required"`
	Venue       string `json:"venue" binding:"required"`
	Date        string `json:"date" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
}
