package domain

import "time"

// Staff is a factory-floor worker who may take timed permissions.
type Staff struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	ShiftStart   string     `json:"shift_start"`
	Quota        Quota      `json:"quota"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SessionValid reports whether the staff holds a login that is not older than ttl.
func (s *Staff) SessionValid(now time.Time, ttl time.Duration) bool {
	if s == nil || !s.Active || s.LastLogin == nil {
		return false
	}
	return now.Sub(*s.LastLogin) < ttl
}

// Quota tracks a staff member's daily permission allowance.
type Quota struct {
	RegularAllowance int    `json:"regular_allowance"`
	MealAllowance    int    `json:"meal_allowance"`
	RegularUsed      int    `json:"regular_used"`
	MealUsed         int    `json:"meal_used"`
	LastResetDate    string `json:"last_reset_date"`
}

// NewQuota returns a fresh quota for date using the policy allowances.
func NewQuota(policy PolicyConfig, date string) Quota {
	return Quota{
		RegularAllowance: policy.RegularQuota,
		MealAllowance:    policy.MealQuota,
		LastResetDate:    date,
	}
}

// Allowance returns the daily allowance for kind.
func (q Quota) Allowance(kind PermissionKind) int {
	if kind == PermissionMeal {
		return q.MealAllowance
	}
	return q.RegularAllowance
}

// Used returns the consumed count for kind.
func (q Quota) Used(kind PermissionKind) int {
	if kind == PermissionMeal {
		return q.MealUsed
	}
	return q.RegularUsed
}

// Remaining returns how many permissions of kind may still be started today.
func (q Quota) Remaining(kind PermissionKind) int {
	if left := q.Allowance(kind) - q.Used(kind); left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether no permission of kind may be started.
func (q Quota) Exhausted(kind PermissionKind) bool {
	return q.Used(kind) >= q.Allowance(kind)
}

// Consume increments the used counter for kind. It returns false and leaves
// the quota untouched when the allowance is already spent.
func (q *Quota) Consume(kind PermissionKind) bool {
	if q.Exhausted(kind) {
		return false
	}
	if kind == PermissionMeal {
		q.MealUsed++
	} else {
		q.RegularUsed++
	}
	return true
}

// Stale reports whether the quota was last reset on a different date.
func (q Quota) Stale(today string) bool {
	return q.LastResetDate != today
}

// Reset zeroes usage for today and refreshes allowances from policy.
func (q *Quota) Reset(policy PolicyConfig, today string) {
	*q = NewQuota(policy, today)
}
