package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

func TestRequestStart_JobdeskBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	b := f.loggedIn(t, "budi")

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "toilet")
	require.NoError(t, err)
	assert.Equal(t, 15, record.DurationMinutes)
	assert.Equal(t, f.clock.Now(), record.StartedAt)
	assert.False(t, record.Ended)
	assert.Equal(t, 1, f.staff(t, a.ID).Quota.RegularUsed)

	_, err = f.engine.RequestStart(ctx, b.ID, domain.PermissionRegular, "Packing", "")
	require.True(t, apperrors.HasCode(err, domain.CodeJobdeskBusy), err)
	assert.Equal(t, a.DisplayName, apperrors.ToDomainError(err).Details["occupied_by"])
	assert.Equal(t, 0, f.staff(t, b.ID).Quota.RegularUsed, "rejection has no side effects")

	assert.Len(t, f.eventsOf(events.EventPermissionStarted), 1)
}

func TestRequestStart_QuotaExhaustedPerKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	for i := 0; i < 3; i++ {
		record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionMeal, "Gudang", "")
		require.NoError(t, err)
		_, err = f.engine.End(ctx, record.ID, domain.EndReasonManual)
		require.NoError(t, err)
	}

	_, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionMeal, "Gudang", "")
	require.True(t, apperrors.HasCode(err, domain.CodeQuotaExhausted), err)
	assert.Equal(t, 3, f.staff(t, a.ID).Quota.MealUsed)

	_, err = f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Gudang", "")
	require.NoError(t, err, "the other kind is unaffected")
}

func TestRequestStart_RejectionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger := f.addStaff(t, "stranger", "05:00")
	_, err := f.engine.RequestStart(ctx, stranger.ID, domain.PermissionRegular, "Nowhere", "")
	assert.True(t, apperrors.HasCode(err, domain.CodeNotAuthenticated), "not logged in comes first")

	_, err = f.engine.RequestStart(ctx, "missing", domain.PermissionRegular, "Packing", "")
	assert.True(t, apperrors.HasCode(err, domain.CodeNotAuthenticated))

	a := f.loggedIn(t, "ahmad")
	first, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	_, err = f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Nowhere", "")
	assert.True(t, apperrors.HasCode(err, domain.CodeUnknownJobdesk), "unknown jobdesk before already active")

	_, err = f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.True(t, apperrors.HasCode(err, domain.CodeAlreadyActive), "already active before jobdesk busy")
	assert.Equal(t, first.ID, apperrors.ToDomainError(err).Details["permission_id"])

	_, err = f.engine.RequestStart(ctx, a.ID, domain.PermissionKind("coffee"), "Packing", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestRequestStart_SessionOlderThanTTL(t *testing.T) {
	f := newFixture(t)
	a := f.loggedIn(t, "ahmad")

	f.clock.Advance(8 * time.Hour)
	_, err := f.engine.RequestStart(context.Background(), a.ID, domain.PermissionRegular, "Packing", "")
	assert.True(t, apperrors.HasCode(err, domain.CodeNotAuthenticated))
}

func TestAutoExpiry_EndsAtDeadlineWithoutRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	start := f.clock.Now()

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	f.clock.Advance(14 * time.Minute)
	assert.Equal(t, int64(60), f.engine.RemainingSeconds(*record))
	ended, left, err := f.engine.ExpireIfDue(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, ended)
	assert.Equal(t, time.Minute, left)

	f.clock.Advance(time.Minute)
	assert.Equal(t, int64(0), f.engine.RemainingSeconds(*record))
	ended, _, err = f.engine.ExpireIfDue(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, ended)
	assert.Equal(t, domain.EndReasonTimeout, ended.EndReason)
	assert.Equal(t, start.Add(15*time.Minute), *ended.EndedAt)
	assert.Equal(t, 1, f.staff(t, a.ID).Quota.RegularUsed)

	again, _, err := f.engine.ExpireIfDue(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, again, "expiry happens once")
	assert.Len(t, f.eventsOf(events.EventPermissionEnded), 1)
}

func TestExpireDue_RespectsAutoEndFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	f.setPolicy(t, func(p *domain.PolicyConfig) { p.AutoEndPermission = false })

	_, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionMeal, "Packing", "")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	ended, err := f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ended)

	f.setPolicy(t, func(p *domain.PolicyConfig) { p.AutoEndPermission = true })
	ended, err = f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, domain.EndReasonTimeout, ended[0].EndReason)
}

func TestEnd_IsIdempotentInEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	ended, err := f.engine.End(ctx, record.ID, domain.EndReasonManual)
	require.NoError(t, err)
	assert.True(t, ended.Ended)
	assert.Equal(t, int64(300), ended.ElapsedSeconds(f.clock.Now().Add(time.Hour)))

	_, err = f.engine.End(ctx, record.ID, domain.EndReasonManual)
	assert.True(t, apperrors.HasCode(err, domain.CodeNotActive))
	_, err = f.engine.End(ctx, "unknown", domain.EndReasonManual)
	assert.True(t, apperrors.HasCode(err, domain.CodeNotActive))

	stored, err := f.store.Permissions().GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ended.EndedAt, stored.EndedAt)
	assert.Len(t, f.eventsOf(events.EventPermissionEnded), 1)
}

func TestEndOwn_OnlyHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	b := f.loggedIn(t, "budi")

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	_, err = f.engine.EndOwn(ctx, b.ID, record.ID)
	assert.True(t, apperrors.HasCode(err, domain.CodeNotActive))

	ended, err := f.engine.EndOwn(ctx, a.ID, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonManual, ended.EndReason)
}

func TestRoundTrip_ExclusivityReleasesOnEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	b := f.loggedIn(t, "budi")

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)
	_, err = f.engine.End(ctx, record.ID, domain.EndReasonManual)
	require.NoError(t, err)

	_, err = f.engine.RequestStart(ctx, b.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)
}

func TestDurationFixedAtStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")
	b := f.loggedIn(t, "budi")

	first, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	f.setPolicy(t, func(p *domain.PolicyConfig) { p.RegularDurationMinutes = 30 })

	stored, err := f.store.Permissions().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.DurationMinutes)

	second, err := f.engine.RequestStart(ctx, b.ID, domain.PermissionRegular, "Gudang", "")
	require.NoError(t, err)
	assert.Equal(t, 30, second.DurationMinutes)
}

func TestSweep_DayRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setPolicy(t, func(p *domain.PolicyConfig) { p.AutoEndPermission = false })

	f.addStaff(t, "budi", "22:00")
	f.clock.Set(time.Date(2026, 10, 18, 22, 30, 0, 0, time.UTC))
	result, err := f.gate.Login(ctx, "budi", "staff123")
	require.NoError(t, err)
	b := result.Staff

	f.clock.Set(time.Date(2026, 10, 18, 23, 50, 0, 0, time.UTC))
	record, err := f.engine.RequestStart(ctx, b.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 19, 0, 10, 0, 0, time.UTC))
	sweep, err := f.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.QuotasReset)
	require.Len(t, sweep.Ended, 1)
	assert.Equal(t, record.ID, sweep.Ended[0].ID)
	assert.Equal(t, domain.EndReasonTimeout, sweep.Ended[0].EndReason)

	stored := f.staff(t, b.ID)
	assert.Equal(t, 0, stored.Quota.RegularUsed)
	assert.Equal(t, "2026-10-19", stored.Quota.LastResetDate)

	again, err := f.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.QuotasReset)
	assert.Empty(t, again.Ended)
}

func TestSweep_ExpiresStaleLogins(t *testing.T) {
	f := newFixture(t)
	a := f.loggedIn(t, "ahmad")

	f.clock.Advance(9 * time.Hour)
	result, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.LoginsExpired)
	assert.False(t, f.staff(t, a.ID).Active)
}

func TestEnsureFreshQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	_, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)

	staff, err := f.engine.EnsureFreshQuota(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, staff.Quota.RegularUsed, "same day is a no-op")

	f.clock.Advance(24 * time.Hour)
	f.setPolicy(t, func(p *domain.PolicyConfig) { p.RegularQuota = 6 })
	staff, err = f.engine.EnsureFreshQuota(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, staff.Quota.RegularUsed)
	assert.Equal(t, 6, staff.Quota.RegularAllowance)
	assert.Len(t, f.eventsOf(events.EventQuotaReset), 1)
}

func TestConcurrentClaimsOnOneJobdesk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.loggedIn(t, fmt.Sprintf("staff%d", i)).ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		busy    int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(staffID string) {
			defer wg.Done()
			_, err := f.engine.RequestStart(ctx, staffID, domain.PermissionRegular, "Packing", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case apperrors.HasCode(err, domain.CodeJobdeskBusy):
				busy++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, n-1, busy)
	active, err := f.store.Permissions().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

type failingStart struct {
	repository.PermissionRepository
	err error
}

func (f failingStart) Start(context.Context, *domain.Staff, *domain.PermissionRecord) error {
	return f.err
}

func TestRequestStart_StorageFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("disk full")
	f := newFixture(t, withPermissionRepo(func(inner repository.PermissionRepository) repository.PermissionRepository {
		return failingStart{PermissionRepository: inner, err: boom}
	}))
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	_, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeStorageError))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, f.staff(t, a.ID).Quota.RegularUsed)
	active, err := f.store.Permissions().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, f.eventsOf(events.EventPermissionStarted))
}

func TestViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	record, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionMeal, "Packing", "makan")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	board, err := f.engine.ActiveBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "#9C27B0", board[0].Color)
	assert.Equal(t, int64(120), board[0].ElapsedSeconds)
	assert.Equal(t, int64(300), board[0].RemainingSeconds)
	assert.Equal(t, domain.UrgencyNormal, board[0].Urgency)

	f.clock.Advance(time.Second)
	board, err = f.engine.ActiveBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyWarning, board[0].Urgency)

	f.clock.Advance(2 * time.Minute)
	board, err = f.engine.ActiveBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(179), board[0].RemainingSeconds)
	assert.Equal(t, domain.UrgencyCritical, board[0].Urgency)

	info, err := f.engine.StaffInfo(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, KindQuota{Used: 1, Allowance: 3, Remaining: 2}, info.Meal)
	assert.Equal(t, KindQuota{Used: 0, Allowance: 4, Remaining: 4}, info.Regular)
	assert.Equal(t, 1, info.TotalPermissions)
	require.NotNil(t, info.Active)
	assert.Equal(t, record.ID, info.Active.ID)
	assert.True(t, info.SessionValid)

	history, err := f.engine.History(ctx, a.ID, "2026-10-18")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	history, err = f.engine.History(ctx, a.ID, "2026-10-17")
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = f.engine.History(ctx, a.ID, "18/10/2026")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	logs, err := f.engine.Logs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestActiveBoard_UnknownJobdeskColor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.loggedIn(t, "ahmad")

	_, err := f.engine.RequestStart(ctx, a.ID, domain.PermissionRegular, "Packing", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Jobdesks().Delete(ctx, mustJobdesk(t, f, "Packing").ID))

	board, err := f.engine.ActiveBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, domain.DefaultJobdeskColor, board[0].Color)
}

func mustJobdesk(t *testing.T, f *fixture, name string) *domain.Jobdesk {
	t.Helper()
	jobdesk, err := f.store.Jobdesks().GetByName(context.Background(), name)
	require.NoError(t, err)
	return jobdesk
}
