package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

const sessionKeyPrefix = "session:"

type redisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisSessionStore keeps sessions in Redis with the session expiry as key
// TTL. The TTL is measured against now, the same clock that stamps ExpiresAt;
// nil means time.Now.
func NewRedisSessionStore(client redis.Cmdable, now func() time.Time) SessionStore {
	if now == nil {
		now = time.Now
	}
	return &redisSessionStore{client: client, now: now}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func subjectKey(subjectID string) string {
	return sessionKeyPrefix + "subject:" + subjectID
}

func (s *redisSessionStore) Save(ctx context.Context, session domain.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
	pipe.SAdd(ctx, subjectKey(session.SubjectID), session.ID)
	pipe.Expire(ctx, subjectKey(session.SubjectID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, subjectKey(session.SubjectID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisSessionStore) DeleteBySubject(ctx context.Context, subjectID string) error {
	ids, err := s.client.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, subjectKey(subjectID))
	return s.client.Del(ctx, keys...).Err()
}
