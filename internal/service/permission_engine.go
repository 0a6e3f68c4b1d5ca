package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/observability"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

// PermissionEngine decides when permissions start and end. It keeps no state
// of its own: records and quotas live in the repositories and the active set
// is the repository view of unended records. A single writer lock serialises
// every check-then-write sequence so exclusivity and quota checks cannot
// interleave. Events are published after the lock is released.
type PermissionEngine struct {
	mu          sync.Mutex
	staff       repository.StaffRepository
	jobdesks    repository.JobdeskRepository
	permissions repository.PermissionRepository
	policies    PolicyReader
	clock       clock.Clock
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// EngineDependencies bundles collaborators for the permission engine.
type EngineDependencies struct {
	StaffRepo      repository.StaffRepository
	JobdeskRepo    repository.JobdeskRepository
	PermissionRepo repository.PermissionRepository
	Policies       PolicyReader
	Clock          clock.Clock
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// SweepResult reports what a sweep changed.
type SweepResult struct {
	QuotasReset   int
	LoginsExpired int
	Ended         []domain.PermissionRecord
}

// NewPermissionEngine constructs the engine.
func NewPermissionEngine(deps EngineDependencies) *PermissionEngine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionEngine{
		staff:       deps.StaffRepo,
		jobdesks:    deps.JobdeskRepo,
		permissions: deps.PermissionRepo,
		policies:    deps.Policies,
		clock:       deps.Clock,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// Now exposes the engine clock.
func (e *PermissionEngine) Now() time.Time {
	return e.clock.Now()
}

// RequestStart grants a permission or returns the first failing rejection.
// A rejection leaves every store untouched.
func (e *PermissionEngine) RequestStart(ctx context.Context, staffID string, kind domain.PermissionKind, jobdeskName, note string) (*domain.PermissionRecord, error) {
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("invalid permission kind", map[string]any{"kind": kind})
	}

	e.mu.Lock()
	record, pending, err := e.start(ctx, staffID, kind, strings.TrimSpace(jobdeskName), strings.TrimSpace(note))
	e.mu.Unlock()

	if err != nil {
		e.rejected(staffID, jobdeskName, err)
		return nil, err
	}
	e.publish(ctx, pending...)
	return record, nil
}

func (e *PermissionEngine) start(ctx context.Context, staffID string, kind domain.PermissionKind, jobdeskName, note string) (*domain.PermissionRecord, []events.Event, error) {
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	now := e.clock.Now()

	staff, err := e.staff.GetByID(ctx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, domain.NotAuthenticated(staffID)
	}
	if err != nil {
		return nil, nil, apperrors.NewStorageError(err)
	}
	if !staff.SessionValid(now, policy.SessionTTL()) {
		return nil, nil, domain.NotAuthenticated(staffID)
	}

	jobdesk, err := e.jobdesks.GetByName(ctx, jobdeskName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, domain.UnknownJobdesk(jobdeskName)
	}
	if err != nil {
		return nil, nil, apperrors.NewStorageError(err)
	}

	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return nil, nil, apperrors.NewStorageError(err)
	}
	for i := range active {
		if active[i].StaffID == staff.ID {
			return nil, nil, domain.AlreadyActive(active[i])
		}
	}
	for i := range active {
		if active[i].JobdeskName == jobdesk.Name {
			return nil, nil, domain.JobdeskBusy(jobdesk.Name, &active[i])
		}
	}

	var pending []events.Event
	today := clock.DateOf(now)
	quota := staff.Quota
	if quota.Stale(today) {
		quota.Reset(policy, today)
		pending = append(pending, quotaResetEvent(staff.ID, today, events.StaffActor(staff.ID)))
	}
	if !quota.Consume(kind) {
		return nil, nil, domain.QuotaExhausted(kind, quota)
	}

	record := &domain.PermissionRecord{
		StaffID:         staff.ID,
		StaffName:       staff.DisplayName,
		Kind:            kind,
		JobdeskName:     jobdesk.Name,
		Note:            note,
		DurationMinutes: policy.DurationMinutes(kind),
		StartedAt:       now,
	}
	updated := *staff
	updated.Quota = quota
	if err := e.permissions.Start(ctx, &updated, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrJobdeskOccupied):
			return nil, nil, domain.JobdeskBusy(jobdesk.Name, nil)
		case errors.Is(err, repository.ErrStaffOccupied):
			return nil, nil, domain.AlreadyActive(domain.PermissionRecord{StaffID: staff.ID})
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, domain.NotAuthenticated(staffID)
		}
		return nil, nil, apperrors.NewStorageError(err)
	}

	e.metrics.PermissionStarted(string(kind))
	e.logger.Info("permission started",
		zap.String("permission_id", record.ID),
		zap.String("staff_id", staff.ID),
		zap.String("jobdesk", record.JobdeskName),
		zap.String("kind", string(kind)),
		zap.Int("duration_minutes", record.DurationMinutes))

	pending = append(pending, events.Event{
		Type:    events.EventPermissionStarted,
		StaffID: staff.ID,
		Actor:   events.StaffActor(staff.ID),
		Payload: events.PermissionStartedPayload{Permission: *record},
	})
	return record, pending, nil
}

// End moves an active permission to ended. A second call for the same id
// returns NotActive.
func (e *PermissionEngine) End(ctx context.Context, permissionID string, reason domain.EndReason) (*domain.PermissionRecord, error) {
	return e.finish(ctx, permissionID, reason, "")
}

// EndOwn ends a permission manually on behalf of the staff member holding it.
func (e *PermissionEngine) EndOwn(ctx context.Context, staffID, permissionID string) (*domain.PermissionRecord, error) {
	return e.finish(ctx, permissionID, domain.EndReasonManual, staffID)
}

func (e *PermissionEngine) finish(ctx context.Context, permissionID string, reason domain.EndReason, owner string) (*domain.PermissionRecord, error) {
	if !reason.Valid() {
		return nil, apperrors.NewValidationError("invalid end reason", map[string]any{"reason": reason})
	}

	e.mu.Lock()
	record, err := e.endLocked(ctx, permissionID, reason, owner)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publish(ctx, endedEvent(*record))
	return record, nil
}

func (e *PermissionEngine) endLocked(ctx context.Context, permissionID string, reason domain.EndReason, owner string) (*domain.PermissionRecord, error) {
	record, err := e.permissions.GetByID(ctx, permissionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotActive(permissionID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	if record.Ended || (owner != "" && record.StaffID != owner) {
		return nil, domain.NotActive(permissionID)
	}

	now := e.clock.Now()
	ended := *record
	ended.Ended = true
	ended.EndedAt = &now
	ended.EndReason = reason
	if err := e.permissions.Finish(ctx, &ended); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotActive(permissionID)
		}
		return nil, apperrors.NewStorageError(err)
	}

	e.metrics.PermissionEnded(string(reason))
	e.logger.Info("permission ended",
		zap.String("permission_id", ended.ID),
		zap.String("staff_id", ended.StaffID),
		zap.String("jobdesk", ended.JobdeskName),
		zap.String("reason", string(reason)),
		zap.Int64("elapsed_seconds", ended.ElapsedSeconds(now)))
	return &ended, nil
}

// RemainingSeconds is the countdown of record at the engine clock.
func (e *PermissionEngine) RemainingSeconds(record domain.PermissionRecord) int64 {
	return record.RemainingSeconds(e.clock.Now())
}

// ExpireIfDue ends the permission with reason timeout when its time is up and
// auto-end is enabled. It returns the ended record, or the time still left
// when the permission is not due yet. Already ended permissions are ignored.
func (e *PermissionEngine) ExpireIfDue(ctx context.Context, permissionID string) (*domain.PermissionRecord, time.Duration, error) {
	e.mu.Lock()
	record, left, err := e.expireIfDueLocked(ctx, permissionID)
	e.mu.Unlock()

	if err != nil || record == nil {
		return nil, left, err
	}
	e.publish(ctx, endedEvent(*record))
	return record, 0, nil
}

func (e *PermissionEngine) expireIfDueLocked(ctx context.Context, permissionID string) (*domain.PermissionRecord, time.Duration, error) {
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !policy.AutoEndPermission {
		return nil, 0, nil
	}
	record, err := e.permissions.GetByID(ctx, permissionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, apperrors.NewStorageError(err)
	}
	if record.Ended {
		return nil, 0, nil
	}
	now := e.clock.Now()
	if record.RemainingSeconds(now) > 0 {
		return nil, record.Deadline().Sub(now), nil
	}
	ended, err := e.endLocked(ctx, permissionID, domain.EndReasonTimeout, "")
	return ended, 0, err
}

// ExpireDue ends every overdue permission when auto-end is enabled. It is the
// poll fallback for timers that never fired (process restart, clock jumps).
func (e *PermissionEngine) ExpireDue(ctx context.Context) ([]domain.PermissionRecord, error) {
	e.mu.Lock()
	ended, err := e.expireDueLocked(ctx)
	e.mu.Unlock()

	e.publishEnded(ctx, ended)
	return ended, err
}

func (e *PermissionEngine) expireDueLocked(ctx context.Context) ([]domain.PermissionRecord, error) {
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !policy.AutoEndPermission {
		return nil, nil
	}
	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	now := e.clock.Now()
	var ended []domain.PermissionRecord
	for _, record := range active {
		if record.RemainingSeconds(now) > 0 {
			continue
		}
		done, err := e.endLocked(ctx, record.ID, domain.EndReasonTimeout, "")
		if err != nil {
			if apperrors.HasCode(err, domain.CodeNotActive) {
				continue
			}
			return ended, err
		}
		ended = append(ended, *done)
	}
	return ended, nil
}

// EnsureFreshQuota resets the staff member's usage when the calendar date has
// moved on since the last reset. It is idempotent.
func (e *PermissionEngine) EnsureFreshQuota(ctx context.Context, staffID string) (*domain.Staff, error) {
	e.mu.Lock()
	staff, pending, err := e.ensureFreshQuota(ctx, staffID)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publish(ctx, pending...)
	return staff, nil
}

func (e *PermissionEngine) ensureFreshQuota(ctx context.Context, staffID string) (*domain.Staff, []events.Event, error) {
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	staff, err := e.getStaff(ctx, staffID)
	if err != nil {
		return nil, nil, err
	}
	today := clock.DateOf(e.clock.Now())
	reset, err := e.freshenLocked(ctx, staff, policy, today)
	if err != nil {
		return nil, nil, err
	}
	var pending []events.Event
	if reset {
		pending = append(pending, quotaResetEvent(staff.ID, today, events.SystemActor()))
	}
	return staff, pending, nil
}

// freshenLocked resets and stores staff's quota when stale; staff is updated in place.
func (e *PermissionEngine) freshenLocked(ctx context.Context, staff *domain.Staff, policy domain.PolicyConfig, today string) (bool, error) {
	if !staff.Quota.Stale(today) {
		return false, nil
	}
	updated := *staff
	updated.Quota.Reset(policy, today)
	if err := e.staff.Update(ctx, &updated); err != nil {
		return false, apperrors.NewStorageError(err)
	}
	*staff = updated
	e.logger.Debug("quota reset", zap.String("staff_id", staff.ID), zap.String("date", today))
	return true, nil
}

// Sweep runs the day-boundary maintenance: stale quotas are reset, logins
// older than the session TTL are marked inactive, and permissions started on
// an earlier calendar date are force-ended with reason timeout.
func (e *PermissionEngine) Sweep(ctx context.Context) (SweepResult, error) {
	e.mu.Lock()
	result, pending, err := e.sweepLocked(ctx)
	e.mu.Unlock()

	e.publish(ctx, pending...)
	e.publishEnded(ctx, result.Ended)
	if result.QuotasReset > 0 || len(result.Ended) > 0 || result.LoginsExpired > 0 {
		e.logger.Info("sweep finished",
			zap.Int("quotas_reset", result.QuotasReset),
			zap.Int("logins_expired", result.LoginsExpired),
			zap.Int("permissions_ended", len(result.Ended)))
	}
	return result, err
}

func (e *PermissionEngine) sweepLocked(ctx context.Context) (SweepResult, []events.Event, error) {
	var (
		result  SweepResult
		pending []events.Event
	)
	policy, err := e.policies.Current(ctx)
	if err != nil {
		return result, nil, err
	}
	now := e.clock.Now()
	today := clock.DateOf(now)

	roster, err := e.staff.List(ctx)
	if err != nil {
		return result, nil, apperrors.NewStorageError(err)
	}
	for i := range roster {
		staff := &roster[i]
		reset, err := e.freshenLocked(ctx, staff, policy, today)
		if err != nil {
			return result, pending, err
		}
		if reset {
			result.QuotasReset++
			pending = append(pending, quotaResetEvent(staff.ID, today, events.SystemActor()))
		}
		if staff.Active && !staff.SessionValid(now, policy.SessionTTL()) {
			updated := *staff
			updated.Active = false
			if err := e.staff.Update(ctx, &updated); err != nil {
				return result, pending, apperrors.NewStorageError(err)
			}
			result.LoginsExpired++
		}
	}

	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return result, pending, apperrors.NewStorageError(err)
	}
	for _, record := range active {
		if clock.DateOf(record.StartedAt.In(now.Location())) >= today {
			continue
		}
		ended, err := e.endLocked(ctx, record.ID, domain.EndReasonTimeout, "")
		if err != nil {
			if apperrors.HasCode(err, domain.CodeNotActive) {
				continue
			}
			return result, pending, err
		}
		result.Ended = append(result.Ended, *ended)
	}
	return result, pending, nil
}

// MarkLoggedIn records a successful login: the quota is freshened, the staff
// member is marked active and lastLogin is set to now.
func (e *PermissionEngine) MarkLoggedIn(ctx context.Context, staffID string) (*domain.Staff, error) {
	e.mu.Lock()
	staff, pending, err := e.markLoggedIn(ctx, staffID)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.publish(ctx, pending...)
	return staff, nil
}

func (e *PermissionEngine) markLoggedIn(ctx context.Context, staffID string) (*domain.Staff, []events.Event, error) {
	staff, pending, err := e.ensureFreshQuota(ctx, staffID)
	if err != nil {
		return nil, nil, err
	}
	now := e.clock.Now()
	updated := *staff
	updated.Active = true
	updated.LastLogin = &now
	if err := e.staff.Update(ctx, &updated); err != nil {
		return nil, nil, apperrors.NewStorageError(err)
	}
	return &updated, pending, nil
}

// Logout ends the staff member's active permission with reason forced_logout
// and marks the staff member inactive. It returns the ended permission, if any.
func (e *PermissionEngine) Logout(ctx context.Context, staffID string) (*domain.PermissionRecord, error) {
	e.mu.Lock()
	ended, err := e.logoutLocked(ctx, staffID)
	e.mu.Unlock()

	if ended != nil {
		e.publish(ctx, endedEvent(*ended))
	}
	return ended, err
}

func (e *PermissionEngine) logoutLocked(ctx context.Context, staffID string) (*domain.PermissionRecord, error) {
	staff, err := e.getStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	ended, err := e.endActiveLocked(ctx, staffID, domain.EndReasonForcedLogout)
	if err != nil {
		return nil, err
	}
	updated := *staff
	updated.Active = false
	if err := e.staff.Update(ctx, &updated); err != nil {
		return ended, apperrors.NewStorageError(err)
	}
	return ended, nil
}

func (e *PermissionEngine) endActiveLocked(ctx context.Context, staffID string, reason domain.EndReason) (*domain.PermissionRecord, error) {
	active, err := e.permissions.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	for _, record := range active {
		if record.StaffID == staffID {
			return e.endLocked(ctx, record.ID, reason, "")
		}
	}
	return nil, nil
}

// UpdateStaff applies mutate to the stored staff member under the writer lock.
func (e *PermissionEngine) UpdateStaff(ctx context.Context, staffID string, mutate func(*domain.Staff) error) (*domain.Staff, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	staff, err := e.getStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	updated := *staff
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if err := e.staff.Update(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, domain.DuplicateUsername(updated.Username)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("staff", map[string]any{"id": staffID})
		}
		return nil, apperrors.NewStorageError(err)
	}
	return &updated, nil
}

// DeleteStaff removes a staff member after ending their active permission
// with reason forced_logout. Permission history is kept.
func (e *PermissionEngine) DeleteStaff(ctx context.Context, staffID string) error {
	e.mu.Lock()
	ended, err := e.deleteStaffLocked(ctx, staffID)
	e.mu.Unlock()

	if ended != nil {
		e.publish(ctx, endedEvent(*ended))
	}
	return err
}

func (e *PermissionEngine) deleteStaffLocked(ctx context.Context, staffID string) (*domain.PermissionRecord, error) {
	if _, err := e.getStaff(ctx, staffID); err != nil {
		return nil, err
	}
	ended, err := e.endActiveLocked(ctx, staffID, domain.EndReasonForcedLogout)
	if err != nil {
		return nil, err
	}
	if err := e.staff.Delete(ctx, staffID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ended, apperrors.NewNotFound("staff", map[string]any{"id": staffID})
		}
		return ended, apperrors.NewStorageError(err)
	}
	e.logger.Info("staff deleted", zap.String("staff_id", staffID))
	return ended, nil
}

// WithJobdeskReleased runs fn under the writer lock. resolve is called under
// the same lock and names the jobdesk that must have no active permission; an
// empty name skips the occupancy check.
func (e *PermissionEngine) WithJobdeskReleased(ctx context.Context, resolve func() (string, error), fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, err := resolve()
	if err != nil {
		return err
	}
	if name != "" {
		active, err := e.permissions.ListActive(ctx)
		if err != nil {
			return apperrors.NewStorageError(err)
		}
		for i := range active {
			if active[i].JobdeskName == name {
				return domain.JobdeskBusy(name, &active[i])
			}
		}
	}
	return fn()
}

func (e *PermissionEngine) getStaff(ctx context.Context, staffID string) (*domain.Staff, error) {
	staff, err := e.staff.GetByID(ctx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("staff", map[string]any{"id": staffID})
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return staff, nil
}

func (e *PermissionEngine) rejected(staffID, jobdeskName string, err error) {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= 500 {
		e.logger.Error("permission request failed", zap.String("staff_id", staffID), zap.Error(err))
		return
	}
	e.metrics.PermissionRejected(domainErr.Code)
	e.logger.Info("permission rejected",
		zap.String("staff_id", staffID),
		zap.String("jobdesk", jobdeskName),
		zap.String("reason", domainErr.Code))
}

func (e *PermissionEngine) publishEnded(ctx context.Context, records []domain.PermissionRecord) {
	for _, record := range records {
		e.publish(ctx, endedEvent(record))
	}
}

func (e *PermissionEngine) publish(ctx context.Context, pending ...events.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = e.clock.Now()
		}
		if err := e.dispatcher.Publish(ctx, event); err != nil {
			e.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
}

func endedEvent(record domain.PermissionRecord) events.Event {
	actor := events.StaffActor(record.StaffID)
	if record.EndReason == domain.EndReasonTimeout {
		actor = events.SystemActor()
	}
	return events.Event{
		Type:    events.EventPermissionEnded,
		StaffID: record.StaffID,
		Actor:   actor,
		Payload: events.PermissionEndedPayload{Permission: record, Reason: record.EndReason},
	}
}

func quotaResetEvent(staffID, date string, actor events.Actor) events.Event {
	return events.Event{
		Type:    events.EventQuotaReset,
		StaffID: staffID,
		Actor:   actor,
		Payload: events.QuotaResetPayload{Date: date},
	}
}
