package domain

import "time"

// SubjectType differentiates staff vs admin sessions.
type SubjectType string

const (
	SubjectTypeStaff SubjectType = "STAFF"
	SubjectTypeAdmin SubjectType = "ADMIN"
	// SubjectTypeSystem marks actions taken by the scheduler or sweep.
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// Session is a server-side login record; a token is only honoured while its
// session exists.
type Session struct {
	ID        string      `json:"id"`
	Subject   SubjectType `json:"subject"`
	SubjectID string      `json:"subject_id"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}
