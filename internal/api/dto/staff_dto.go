package dto

import (
	"time"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// StaffRequest payload for roster create and update. An empty password on
// update keeps the current one.
type StaffRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	ShiftStart  string `json:"shift_start"`
}

// StaffResponse is the public view of a staff member.
type StaffResponse struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name"`
	ShiftStart  string       `json:"shift_start"`
	Quota       domain.Quota `json:"quota"`
	Active      bool         `json:"active"`
	LastLogin   *time.Time   `json:"last_login,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewStaffResponse maps a domain staff member.
func NewStaffResponse(staff *domain.Staff) StaffResponse {
	return StaffResponse{
		ID:          staff.ID,
		Username:    staff.Username,
		DisplayName: staff.DisplayName,
		ShiftStart:  staff.ShiftStart,
		Quota:       staff.Quota,
		Active:      staff.Active,
		LastLogin:   staff.LastLogin,
		CreatedAt:   staff.CreatedAt,
	}
}
