package events

import (
	"time"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPermissionStarted EventType = "permission_started"
	EventPermissionEnded   EventType = "permission_ended"
	EventQuotaReset        EventType = "quota_reset"
	EventStaffLoggedIn     EventType = "staff_logged_in"
	EventStaffLoggedOut    EventType = "staff_logged_out"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// StaffActor is the actor for an action taken by the staff member itself.
func StaffActor(staffID string) Actor {
	return Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
}

// SystemActor is the actor for scheduler and sweep actions.
func SystemActor() Actor {
	return Actor{Type: domain.SubjectTypeSystem}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	StaffID   string      `json:"staff_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PermissionStartedPayload payload.
type PermissionStartedPayload struct {
	Permission domain.PermissionRecord `json:"permission"`
}

// PermissionEndedPayload payload.
type PermissionEndedPayload struct {
	Permission domain.PermissionRecord `json:"permission"`
	Reason     domain.EndReason        `json:"reason"`
}

// QuotaResetPayload payload.
type QuotaResetPayload struct {
	Date string `json:"date"`
}

// StaffSessionPayload payload for login and logout.
type StaffSessionPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}
