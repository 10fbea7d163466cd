package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tenant-onboarding-service/internal/config"
	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/session"
)

// Key prefixes
const (
	SessionKeyPrefix    = "onboarding:session:"
	AttachmentKeyPrefix = "onboarding:attachment:"
)

// minTTL keeps a just-expiring session readable for the request that saved it
const minTTL = time.Second

// Client wraps the Redis client with application-specific methods
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SessionStore stores wizard state in Redis with a TTL matching the session expiry
type SessionStore struct {
	client *Client
}

// NewSessionStore creates a Redis backed session.Store
func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client}
}

var _ session.Store = (*SessionStore)(nil)

// Get loads a session
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*models.WizardState, error) {
	data, err := s.client.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var state models.WizardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Save writes a session, refreshing its TTL and the TTL of its attachment
// keys from ExpiresAt. Attachment bytes are not rewritten.
func (s *SessionStore) Save(ctx context.Context, state *models.WizardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := ttlUntil(state.ExpiresAt)
	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(state.SessionID), data, ttl)
		for _, id := range state.AttachmentIDs() {
			pipe.Expire(ctx, attachmentKey(id), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis expires session keys by TTL
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// PutAttachment stores the bytes of an upload until expiresAt
func (s *SessionStore) PutAttachment(ctx context.Context, id uuid.UUID, data []byte, expiresAt time.Time) error {
	if err := s.client.rdb.Set(ctx, attachmentKey(id), data, ttlUntil(expiresAt)).Err(); err != nil {
		return fmt.Errorf("failed to store attachment: %w", err)
	}
	return nil
}

// GetAttachment loads the bytes of an upload
func (s *SessionStore) GetAttachment(ctx context.Context, id uuid.UUID) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, attachmentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return data, nil
}

// DeleteAttachments removes the bytes of the given uploads
func (s *SessionStore) DeleteAttachments(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, attachmentKey(id))
	}
	if err := s.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	return nil
}

// CountSessions scans the live session keys
func (s *SessionStore) CountSessions(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.rdb.Scan(ctx, cursor, SessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan session keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

func sessionKey(id uuid.UUID) string {
	return SessionKeyPrefix + id.String()
}

func attachmentKey(id uuid.UUID) string {
	return AttachmentKeyPrefix + id.String()
}

func ttlUntil(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}
