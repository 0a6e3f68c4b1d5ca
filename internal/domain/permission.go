package domain

import "time"

// PermissionKind distinguishes short breaks from meal breaks.
type PermissionKind string

const (
	PermissionRegular PermissionKind = "regular"
	PermissionMeal    PermissionKind = "meal"
)

// Valid reports whether k is a known kind.
func (k PermissionKind) Valid() bool {
	return k == PermissionRegular || k == PermissionMeal
}

// EndReason records how a permission left the active set.
type EndReason string

const (
	EndReasonManual       EndReason = "manual"
	EndReasonTimeout      EndReason = "timeout"
	EndReasonForcedLogout EndReason = "forced_logout"
)

// Valid reports whether r is a known reason.
func (r EndReason) Valid() bool {
	switch r {
	case EndReasonManual, EndReasonTimeout, EndReasonForcedLogout:
		return true
	}
	return false
}

// PermissionRecord is a single timed absence. It is created active and moves
// to ended exactly once; records are never deleted.
type PermissionRecord struct {
	ID              string         `json:"id"`
	StaffID         string         `json:"staff_id"`
	StaffName       string         `json:"staff_name"`
	Kind            PermissionKind `json:"kind"`
	JobdeskName     string         `json:"jobdesk_name"`
	Note            string         `json:"note"`
	DurationMinutes int            `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	Ended           bool           `json:"ended"`
	EndReason       EndReason      `json:"end_reason,omitempty"`
}

// Deadline is the instant the permission's allotted time runs out.
func (p PermissionRecord) Deadline() time.Time {
	return p.StartedAt.Add(time.Duration(p.DurationMinutes) * time.Minute)
}

// RemainingSeconds is max(0, duration - elapsed) at now, in whole seconds.
func (p PermissionRecord) RemainingSeconds(now time.Time) int64 {
	elapsed := int64(now.Sub(p.StartedAt) / time.Second)
	remaining := int64(p.DurationMinutes)*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Urgency grades how close a running permission is to its deadline.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// Countdown thresholds, in seconds remaining.
const (
	warningBelowSeconds  = 5 * 60
	criticalBelowSeconds = 3 * 60
)

// UrgencyOf maps remaining seconds to a band: under 3 minutes is critical,
// under 5 minutes is a warning.
func UrgencyOf(remainingSeconds int64) Urgency {
	switch {
	case remainingSeconds < criticalBelowSeconds:
		return UrgencyCritical
	case remainingSeconds < warningBelowSeconds:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// ElapsedSeconds is the time spent on permission so far (or in total once ended).
func (p PermissionRecord) ElapsedSeconds(now time.Time) int64 {
	end := now
	if p.EndedAt != nil {
		end = *p.EndedAt
	}
	elapsed := end.Sub(p.StartedAt)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / time.Second)
}
