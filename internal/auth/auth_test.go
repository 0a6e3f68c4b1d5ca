package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", func() time.Time { return now })

	session := domain.Session{
		ID:        "sess-1",
		Subject:   domain.SubjectTypeStaff,
		SubjectID: "s1",
		IssuedAt:  now,
		ExpiresAt: now.Add(8 * time.Hour),
	}
	token, err := tm.GenerateToken(session)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "s1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeStaff, claims.Subject)

	now = now.Add(8*time.Hour + time.Second)
	_, err = tm.ParseToken(token)
	assert.Error(t, err, "token expires with its session")

	other := NewTokenManager("other", func() time.Time { return session.IssuedAt })
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("1234", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "1234"))
	assert.Error(t, ComparePassword(hash, "4321"))
}
