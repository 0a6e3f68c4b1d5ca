package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/domain"
)

func newSessionStore(t *testing.T, clk *clock.Fake) (SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, clk.Now), mr
}

func staffSession(id, staffID string, issued time.Time, ttl time.Duration) domain.Session {
	return domain.Session{
		ID:        id,
		Subject:   domain.SubjectTypeStaff,
		SubjectID: staffID,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	}
}

func TestRedisSessionStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	// Far from the real wall clock so a TTL derived from it would be wrong.
	issued := time.Date(2020, 3, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFake(issued)
	store, mr := newSessionStore(t, clk)

	session := staffSession("sess-1", "s1", issued, 8*time.Hour)
	require.NoError(t, store.Save(ctx, session))

	assert.Equal(t, 8*time.Hour, mr.TTL(sessionKey("sess-1")))
	assert.Equal(t, 8*time.Hour, mr.TTL(subjectKey("s1")))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SubjectID)
	assert.Equal(t, domain.SubjectTypeStaff, got.Subject)
	assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2020, 3, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFake(issued)
	store, mr := newSessionStore(t, clk)

	require.NoError(t, store.Save(ctx, staffSession("admin-1", "admin", issued, 30*time.Minute)))

	clk.Advance(30 * time.Minute)
	_, err := store.Get(ctx, "admin-1")
	assert.ErrorIs(t, err, ErrNotFound, "expired by the injected clock")

	mr.FastForward(30 * time.Minute)
	assert.False(t, mr.Exists(sessionKey("admin-1")), "key TTL follows the session expiry")

	require.NoError(t, store.Save(ctx, staffSession("stale", "s1", issued, time.Minute)))
	assert.False(t, mr.Exists(sessionKey("stale")), "already expired sessions are not written")
}

func TestRedisSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2020, 3, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFake(issued)
	store, mr := newSessionStore(t, clk)

	require.NoError(t, store.Save(ctx, staffSession("a", "s1", issued, time.Hour)))
	require.NoError(t, store.Save(ctx, staffSession("b", "s1", issued, time.Hour)))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	members, err := mr.Members(subjectKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	require.NoError(t, store.Delete(ctx, "a"), "deleting a missing session is a no-op")
}

func TestRedisSessionStore_DeleteBySubject(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2020, 3, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFake(issued)
	store, mr := newSessionStore(t, clk)

	require.NoError(t, store.Save(ctx, staffSession("a", "s1", issued, time.Hour)))
	require.NoError(t, store.Save(ctx, staffSession("b", "s1", issued, time.Hour)))
	require.NoError(t, store.Save(ctx, staffSession("c", "s2", issued, time.Hour)))

	require.NoError(t, store.DeleteBySubject(ctx, "s1"))

	for _, id := range []string{"a", "b"} {
		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	assert.False(t, mr.Exists(subjectKey("s1")))

	other, err := store.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "s2", other.SubjectID)

	require.NoError(t, store.DeleteBySubject(ctx, "nobody"))
}
