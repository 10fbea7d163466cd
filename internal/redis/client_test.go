package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/session"
)

func TestSessionKey(t *testing.T) {
	id := uuid.MustParse("3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")
	assert.Equal(t, "onboarding:session:3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f", sessionKey(id))
}

func TestAttachmentKey(t *testing.T) {
	id := uuid.MustParse("3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")
	assert.Equal(t, "onboarding:attachment:3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f", attachmentKey(id))
}

func TestTTLUntil_HasFloor(t *testing.T) {
	assert.Equal(t, minTTL, ttlUntil(time.Now().Add(-time.Hour)))
	assert.Greater(t, ttlUntil(time.Now().Add(time.Hour)), 59*time.Minute)
}

func TestSessionStore_PurgeExpiredRelyOnTTL(t *testing.T) {
	store := NewSessionStore(NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})))
	purged, err := store.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestSessionStore_UnreachableServerReturnsError(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewSessionStore(NewClientFromRedis(rdb))
	defer store.client.Close()

	ctx := context.Background()
	err := store.Save(ctx, models.NewWizardState(time.Hour))
	assert.Error(t, err)

	_, err = store.Get(ctx, uuid.New())
	assert.Error(t, err)

	err = store.PutAttachment(ctx, uuid.New(), []byte("%PDF-1.4"), time.Now().Add(time.Hour))
	assert.Error(t, err)

	_, err = store.GetAttachment(ctx, uuid.New())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrAttachmentNotFound)

	assert.NoError(t, store.DeleteAttachments(ctx))
}
