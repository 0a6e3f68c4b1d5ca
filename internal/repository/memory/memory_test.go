package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
)

func seedStaff(t *testing.T, store *Store, username string) *domain.Staff {
	t.Helper()
	staff := &domain.Staff{Username: username, DisplayName: username, Quota: domain.NewQuota(domain.DefaultPolicy(), "2026-10-18")}
	require.NoError(t, store.Staff().Create(context.Background(), staff))
	return staff
}

func TestPermissionStartEnforcesExclusivity(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := seedStaff(t, store, "ahmad")
	b := seedStaff(t, store, "budi")
	started := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	a.Quota.Consume(domain.PermissionRegular)
	first := &domain.PermissionRecord{StaffID: a.ID, JobdeskName: "Packing", Kind: domain.PermissionRegular, StartedAt: started}
	require.NoError(t, store.Permissions().Start(ctx, a, first))
	require.NotEmpty(t, first.ID)

	stored, err := store.Staff().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quota.RegularUsed)

	err = store.Permissions().Start(ctx, b, &domain.PermissionRecord{StaffID: b.ID, JobdeskName: "Packing"})
	assert.ErrorIs(t, err, repository.ErrJobdeskOccupied)

	err = store.Permissions().Start(ctx, a, &domain.PermissionRecord{StaffID: a.ID, JobdeskName: "Gudang"})
	assert.ErrorIs(t, err, repository.ErrStaffOccupied)

	ended := started.Add(5 * time.Minute)
	first.EndedAt = &ended
	first.EndReason = domain.EndReasonManual
	require.NoError(t, store.Permissions().Finish(ctx, first))
	assert.ErrorIs(t, store.Permissions().Finish(ctx, first), repository.ErrNotFound)

	active, err := store.Permissions().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.Permissions().Start(ctx, b, &domain.PermissionRecord{StaffID: b.ID, JobdeskName: "Packing", StartedAt: ended}))
	count, err := store.Permissions().CountByStaff(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPermissionListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := seedStaff(t, store, "ahmad")
	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := &domain.PermissionRecord{StaffID: a.ID, JobdeskName: "Packing", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.Permissions().Start(ctx, a, rec))
		end := rec.StartedAt.Add(time.Minute)
		rec.EndedAt = &end
		require.NoError(t, store.Permissions().Finish(ctx, rec))
	}

	records, err := store.Permissions().List(ctx, repository.PermissionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, base.Add(2*time.Hour), records[0].StartedAt)

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	records, err = store.Permissions().List(ctx, repository.PermissionFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(time.Hour), records[0].StartedAt)
}

func TestUniqueNames(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedStaff(t, store, "ahmad")
	err := store.Staff().Create(ctx, &domain.Staff{Username: "ahmad"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, store.Jobdesks().Create(ctx, &domain.Jobdesk{Name: "Packing"}))
	gudang := &domain.Jobdesk{Name: "Gudang"}
	require.NoError(t, store.Jobdesks().Create(ctx, gudang))
	gudang.Name = "Packing"
	assert.ErrorIs(t, store.Jobdesks().Update(ctx, gudang), repository.ErrDuplicate)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	store := NewStore().WithClock(func() time.Time { return now })
	sessions := store.Sessions()

	require.NoError(t, sessions.Save(ctx, domain.Session{ID: "a", SubjectID: "s1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Save(ctx, domain.Session{ID: "b", SubjectID: "s1", ExpiresAt: now.Add(time.Hour)}))

	_, err := sessions.Get(ctx, "a")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = sessions.Get(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	now = now.Add(-time.Minute)
	require.NoError(t, sessions.DeleteBySubject(ctx, "s1"))
	_, err = sessions.Get(ctx, "b")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPolicyUnsaved(t *testing.T) {
	store := NewStore()
	_, err := store.Policy().Get(context.Background())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, store.Policy().Save(context.Background(), domain.DefaultPolicy()))
	policy, err := store.Policy().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, policy.RegularQuota)
}
