package domain

import (
	"fmt"
	"time"
)

// PolicyConfig holds the tunable rules. The engine reads it at decision time;
// a change never alters permissions that already started.
type PolicyConfig struct {
	ShiftStart             string    `json:"shift_start" yaml:"shift_start"`
	ShiftEnd               string    `json:"shift_end" yaml:"shift_end"`
	NightShiftStart        string    `json:"night_shift_start" yaml:"night_shift_start"`
	NightShiftEnd          string    `json:"night_shift_end" yaml:"night_shift_end"`
	RegularQuota           int       `json:"regular_quota" yaml:"regular_quota"`
	MealQuota              int       `json:"meal_quota" yaml:"meal_quota"`
	RegularDurationMinutes int       `json:"regular_duration_minutes" yaml:"regular_duration_minutes"`
	MealDurationMinutes    int       `json:"meal_duration_minutes" yaml:"meal_duration_minutes"`
	ShiftWindowHours       int       `json:"shift_window_hours" yaml:"shift_window_hours"`
	SessionTTLHours        int       `json:"session_ttl_hours" yaml:"session_ttl_hours"`
	AutoEndPermission      bool      `json:"auto_end_permission" yaml:"auto_end_permission"`
	AllowOvertime          bool      `json:"allow_overtime" yaml:"allow_overtime"`
	MaxOvertimeHours       int       `json:"max_overtime_hours" yaml:"max_overtime_hours"`
	UpdatedAt              time.Time `json:"updated_at" yaml:"-"`
}

// DefaultPolicy mirrors the factory defaults.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		ShiftStart:             "05:00",
		ShiftEnd:               "14:00",
		NightShiftStart:        "22:00",
		NightShiftEnd:          "06:00",
		RegularQuota:           4,
		MealQuota:              3,
		RegularDurationMinutes: 15,
		MealDurationMinutes:    7,
		ShiftWindowHours:       2,
		SessionTTLHours:        8,
		AutoEndPermission:      true,
		AllowOvertime:          false,
		MaxOvertimeHours:       2,
	}
}

// DurationMinutes returns the configured length of a permission of kind.
func (p PolicyConfig) DurationMinutes(kind PermissionKind) int {
	if kind == PermissionMeal {
		return p.MealDurationMinutes
	}
	return p.RegularDurationMinutes
}

// LoginWindow is how long after shift start a login is accepted.
func (p PolicyConfig) LoginWindow() time.Duration {
	window := time.Duration(p.ShiftWindowHours) * time.Hour
	if p.AllowOvertime {
		window += time.Duration(p.MaxOvertimeHours) * time.Hour
	}
	return window
}

// SessionTTL is the maximum age of a login.
func (p PolicyConfig) SessionTTL() time.Duration {
	return time.Duration(p.SessionTTLHours) * time.Hour
}

// Validate checks the ranges accepted by the settings form.
func (p PolicyConfig) Validate() map[string]any {
	problems := map[string]any{}
	for field, value := range map[string]string{
		"shift_start":       p.ShiftStart,
		"shift_end":         p.ShiftEnd,
		"night_shift_start": p.NightShiftStart,
		"night_shift_end":   p.NightShiftEnd,
	} {
		if _, err := ParseShiftTime(value); err != nil {
			problems[field] = err.Error()
		}
	}
	checkRange(problems, "regular_quota", p.RegularQuota, 1, 10)
	checkRange(problems, "meal_quota", p.MealQuota, 1, 10)
	checkRange(problems, "regular_duration_minutes", p.RegularDurationMinutes, 1, 60)
	checkRange(problems, "meal_duration_minutes", p.MealDurationMinutes, 1, 60)
	checkRange(problems, "shift_window_hours", p.ShiftWindowHours, 1, 12)
	checkRange(problems, "session_ttl_hours", p.SessionTTLHours, 1, 24)
	if p.AllowOvertime {
		checkRange(problems, "max_overtime_hours", p.MaxOvertimeHours, 1, 8)
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func checkRange(problems map[string]any, field string, value, min, max int) {
	if value < min || value > max {
		problems[field] = fmt.Sprintf("must be between %d and %d", min, max)
	}
}
