package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paymentlinks/internal/logging"
)

type fakeKV struct {
	values map[string]string
	getErr error
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	v, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	f.values[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

type fakeLocker struct {
	err   error
	calls int
}

func (f *fakeLocker) Obtain(context.Context, string, time.Duration, *redislock.Options) (*redislock.Lock, error) {
	f.calls++
	return nil, f.err
}

func TestRedisDeviceCache_LoadStore(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}}
	cache := &RedisDeviceCache{kv: kv, locker: &fakeLocker{err: redislock.ErrNotObtained}, log: logging.Discard()}
	ctx := context.Background()

	udid, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, udid)

	require.NoError(t, cache.Store(ctx, "udid-1"))
	udid, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "udid-1", udid)
}

func TestRedisDeviceCache_LoadError(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, getErr: errors.New("connection refused")}
	cache := &RedisDeviceCache{kv: kv, locker: &fakeLocker{}, log: logging.Discard()}

	_, err := cache.Load(context.Background())
	assert.Error(t, err)
}

func TestRedisDeviceCache_LockFallsThroughWhenNotObtained(t *testing.T) {
	for _, lockErr := range []error{redislock.ErrNotObtained, errors.New("redis down")} {
		locker := &fakeLocker{err: lockErr}
		cache := &RedisDeviceCache{kv: &fakeKV{values: map[string]string{}}, locker: locker, log: logging.Discard()}

		release := cache.Lock(context.Background())
		require.NotNil(t, release)
		release()
		assert.Equal(t, 1, locker.calls)
	}
}

func TestMemoryDeviceCache(t *testing.T) {
	cache := NewMemoryDeviceCache()
	ctx := context.Background()

	release := cache.Lock(ctx)
	require.NoError(t, cache.Store(ctx, "udid-1"))
	release()

	udid, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "udid-1", udid)
}
