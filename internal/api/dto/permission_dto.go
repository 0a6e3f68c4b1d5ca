package dto

import (
	"time"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// StartPermissionRequest payload.
type StartPermissionRequest struct {
	Kind    string `json:"kind"`
	Jobdesk string `json:"jobdesk"`
	Note    string `json:"note"`
}

// PermissionResponse is a record with its countdown at response time.
type PermissionResponse struct {
	domain.PermissionRecord
	Deadline         time.Time      `json:"deadline"`
	RemainingSeconds int64          `json:"remaining_seconds"`
	Urgency          domain.Urgency `json:"urgency"`
}

// NewPermissionResponse maps a record at now.
func NewPermissionResponse(record domain.PermissionRecord, now time.Time) PermissionResponse {
	remaining := record.RemainingSeconds(now)
	return PermissionResponse{
		PermissionRecord: record,
		Deadline:         record.Deadline(),
		RemainingSeconds: remaining,
		Urgency:          domain.UrgencyOf(remaining),
	}
}
