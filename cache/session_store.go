package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wabaconnect/models"
)

const sessionKeyPrefix = "waba_signup:"

var ErrSessionNotFound = errors.New("signup session not found")

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// SessionStore keeps pending embedded-signup sessions in redis; expiry is left to the key TTL.
type SessionStore struct {
	redis RedisClient
	now   func() time.Time
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewSessionStore(client RedisClient) *SessionStore {
	return &SessionStore{redis: client, now: time.Now}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Save(ctx context.Context, session models.PendingSignupSession) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = models.SIGNUP_SESSION_TTL
	}
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.redis.SetEx(ctx, sessionKey(session.SessionID), b, ttl).Err(); err != nil {
		return fmt.Errorf("save signup session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (models.PendingSignupSession, error) {
	var session models.PendingSignupSession
	raw, err := s.redis.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return session, ErrSessionNotFound
	}
	if err != nil {
		return session, err
	}
	err = json.Unmarshal([]byte(raw), &session)
	return session, err
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *SessionStore) Close() error {
	return s.redis.Close()
}
