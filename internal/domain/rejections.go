package domain

import (
	"net/http"
	"time"

	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

// Business rejection codes. All of them are recoverable.
const (
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeUnknownJobdesk       = "UNKNOWN_JOBDESK"
	CodeAlreadyActive        = "ALREADY_ACTIVE"
	CodeJobdeskBusy          = "JOBDESK_BUSY"
	CodeQuotaExhausted       = "QUOTA_EXHAUSTED"
	CodeNotActive            = "NOT_ACTIVE"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeOutsideShiftWindow   = "OUTSIDE_SHIFT_WINDOW"
	CodeDuplicateUsername    = "DUPLICATE_USERNAME"
	CodeDuplicateJobdeskName = "DUPLICATE_JOBDESK_NAME"
)

func NotAuthenticated(staffID string) error {
	return apperrors.NewDomainError(CodeNotAuthenticated, "staff is not logged in", http.StatusUnauthorized,
		map[string]any{"staff_id": staffID})
}

func UnknownJobdesk(name string) error {
	return apperrors.NewDomainError(CodeUnknownJobdesk, "jobdesk does not exist", http.StatusUnprocessableEntity,
		map[string]any{"jobdesk": name})
}

// AlreadyActive carries the staff's live permission so the caller can show its timer.
func AlreadyActive(active PermissionRecord) error {
	return apperrors.NewDomainError(CodeAlreadyActive, "staff already has an active permission", http.StatusConflict,
		map[string]any{
			"permission_id": active.ID,
			"jobdesk":       active.JobdeskName,
			"started_at":    active.StartedAt,
		})
}

// JobdeskBusy names the staff member currently occupying the jobdesk.
func JobdeskBusy(jobdesk string, holder *PermissionRecord) error {
	details := map[string]any{"jobdesk": jobdesk}
	if holder != nil {
		details["occupied_by"] = holder.StaffName
		details["permission_id"] = holder.ID
	}
	return apperrors.NewDomainError(CodeJobdeskBusy, "jobdesk is in use by another staff member", http.StatusConflict, details)
}

func QuotaExhausted(kind PermissionKind, quota Quota) error {
	return apperrors.NewDomainError(CodeQuotaExhausted, "daily quota exhausted", http.StatusConflict,
		map[string]any{
			"kind":      kind,
			"used":      quota.Used(kind),
			"allowance": quota.Allowance(kind),
		})
}

func NotActive(permissionID string) error {
	return apperrors.NewDomainError(CodeNotActive, "permission is not active", http.StatusConflict,
		map[string]any{"permission_id": permissionID})
}

func InvalidCredentials() error {
	return apperrors.NewDomainError(CodeInvalidCredentials, "username or password incorrect", http.StatusUnauthorized, nil)
}

// OutsideShiftWindow carries the allowed window so the caller can display it.
func OutsideShiftWindow(window ShiftWindow) error {
	return apperrors.NewDomainError(CodeOutsideShiftWindow, "login is only allowed inside the shift window", http.StatusForbidden,
		map[string]any{
			"allowed_from":  window.Start.Format("15:04"),
			"allowed_until": window.End.Format("15:04"),
			"window_start":  window.Start.Format(time.RFC3339),
			"window_end":    window.End.Format(time.RFC3339),
		})
}

func DuplicateUsername(username string) error {
	return apperrors.NewDomainError(CodeDuplicateUsername, "username already exists", http.StatusConflict,
		map[string]any{"username": username})
}

func DuplicateJobdeskName(name string) error {
	return apperrors.NewDomainError(CodeDuplicateJobdeskName, "jobdesk already exists", http.StatusConflict,
		map[string]any{"name": name})
}
