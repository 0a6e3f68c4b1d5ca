package dto

import "github.com/factoryops/jobdesk-permit/internal/domain"

// PolicyRequest is a partial settings update; absent fields keep their value.
type PolicyRequest struct {
	ShiftStart             *string `json:"shift_start"`
	ShiftEnd               *string `json:"shift_end"`
	NightShiftStart        *string `json:"night_shift_start"`
	NightShiftEnd          *string `json:"night_shift_end"`
	RegularQuota           *int    `json:"regular_quota"`
	MealQuota              *int    `json:"meal_quota"`
	RegularDurationMinutes *int    `json:"regular_duration_minutes"`
	MealDurationMinutes    *int    `json:"meal_duration_minutes"`
	ShiftWindowHours       *int    `json:"shift_window_hours"`
	SessionTTLHours        *int    `json:"session_ttl_hours"`
	AutoEndPermission      *bool   `json:"auto_end_permission"`
	AllowOvertime          *bool   `json:"allow_overtime"`
	MaxOvertimeHours       *int    `json:"max_overtime_hours"`
}

// Apply overlays the provided fields on policy.
func (r PolicyRequest) Apply(policy domain.PolicyConfig) domain.PolicyConfig {
	setString(&policy.ShiftStart, r.ShiftStart)
	setString(&policy.ShiftEnd, r.ShiftEnd)
	setString(&policy.NightShiftStart, r.NightShiftStart)
	setString(&policy.NightShiftEnd, r.NightShiftEnd)
	setInt(&policy.RegularQuota, r.RegularQuota)
	setInt(&policy.MealQuota, r.MealQuota)
	setInt(&policy.RegularDurationMinutes, r.RegularDurationMinutes)
	setInt(&policy.MealDurationMinutes, r.MealDurationMinutes)
	setInt(&policy.ShiftWindowHours, r.ShiftWindowHours)
	setInt(&policy.SessionTTLHours, r.SessionTTLHours)
	setInt(&policy.MaxOvertimeHours, r.MaxOvertimeHours)
	if r.AutoEndPermission != nil {
		policy.AutoEndPermission = *r.AutoEndPermission
	}
	if r.AllowOvertime != nil {
		policy.AllowOvertime = *r.AllowOvertime
	}
	return policy
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
