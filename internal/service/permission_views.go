package service

import (
	"context"
	"time"

	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

// ActiveEntry is a running permission as shown on the board.
type ActiveEntry struct {
	domain.PermissionRecord
	Color            string         `json:"color"`
	ElapsedSeconds   int64          `json:"elapsed_seconds"`
	RemainingSeconds int64          `json:"remaining_seconds"`
	Urgency          domain.Urgency `json:"urgency"`
}

// KindQuota summarises one kind of a staff member's daily quota.
type KindQuota struct {
	Used      int `json:"used"`
	Allowance int `json:"allowance"`
	Remaining int `json:"remaining"`
}

// StaffInfo is the staff dashboard view.
type StaffInfo struct {
	Staff            domain.Staff `json:"staff"`
	Regular          KindQuota    `json:"regular"`
	Meal             KindQuota    `json:"meal"`
	TotalPermissions int          `json:"total_permissions"`
	Active           *ActiveEntry `json:"active,omitempty"`
	SessionValid     bool         `json:"session_valid"`
}

// ActiveBoard lists every running permission, oldest first.
func (e *PermissionEngine) ActiveBoard(ctx context.Context) ([]ActiveEntry, error) {
	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	colors, err := e.jobdeskColors(ctx)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	board := make([]ActiveEntry, 0, len(active))
	for _, record := range active {
		board = append(board, toActiveEntry(record, colors, now))
	}
	return board, nil
}

// StaffInfo returns quota, totals and the running permission of a staff member.
// A quota from an earlier day is shown as already reset; the stored reset
// happens on the next write.
func (e *PermissionEngine) StaffInfo(ctx context.Context, staffID string) (*StaffInfo, error) {
	staff, err := e.getStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	quota := staff.Quota
	if quota.Stale(clock.DateOf(now)) {
		quota.Reset(policy, clock.DateOf(now))
	}
	view := *staff
	view.Quota = quota

	total, err := e.permissions.CountByStaff(ctx, staffID)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	info := &StaffInfo{
		Staff:            view,
		Regular:          kindQuota(quota, domain.PermissionRegular),
		Meal:             kindQuota(quota, domain.PermissionMeal),
		TotalPermissions: total,
		SessionValid:     staff.SessionValid(now, policy.SessionTTL()),
	}

	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	for _, record := range active {
		if record.StaffID != staffID {
			continue
		}
		colors, err := e.jobdeskColors(ctx)
		if err != nil {
			return nil, err
		}
		entry := toActiveEntry(record, colors, now)
		info.Active = &entry
		break
	}
	return info, nil
}

// History lists a staff member's permissions newest first. A non-empty date
// (YYYY-MM-DD in the engine clock's zone) restricts it to that calendar day.
func (e *PermissionEngine) History(ctx context.Context, staffID, date string) ([]domain.PermissionRecord, error) {
	filter := repository.PermissionFilter{StaffID: &staffID}
	if date != "" {
		day, err := time.ParseInLocation(clock.DateLayout, date, e.clock.Now().Location())
		if err != nil {
			return nil, apperrors.NewValidationError("invalid date", map[string]any{"date": date})
		}
		next := day.AddDate(0, 0, 1)
		filter.From = &day
		filter.To = &next
	}
	records, err := e.permissions.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return records, nil
}

// Logs lists permissions of every staff member newest first.
func (e *PermissionEngine) Logs(ctx context.Context, limit int) ([]domain.PermissionRecord, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	records, err := e.permissions.List(ctx, repository.PermissionFilter{Limit: limit})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return records, nil
}

func (e *PermissionEngine) jobdeskColors(ctx context.Context) (map[string]string, error) {
	catalog, err := e.jobdesks.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	colors := make(map[string]string, len(catalog))
	for _, jobdesk := range catalog {
		colors[jobdesk.Name] = jobdesk.Color
	}
	return colors, nil
}

func toActiveEntry(record domain.PermissionRecord, colors map[string]string, now time.Time) ActiveEntry {
	color, ok := colors[record.JobdeskName]
	if !ok || color == "" {
		color = domain.DefaultJobdeskColor
	}
	remaining := record.RemainingSeconds(now)
	return ActiveEntry{
		PermissionRecord: record,
		Color:            color,
		ElapsedSeconds:   record.ElapsedSeconds(now),
		RemainingSeconds: remaining,
		Urgency:          domain.UrgencyOf(remaining),
	}
}

func kindQuota(quota domain.Quota, kind domain.PermissionKind) KindQuota {
	return KindQuota{
		Used:      quota.Used(kind),
		Allowance: quota.Allowance(kind),
		Remaining: quota.Remaining(kind),
	}
}
