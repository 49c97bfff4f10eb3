package provider

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DeviceCache holds the Link2Pay device id. Lock serialises device creation and
// returns the matching release func; it never fails.
type DeviceCache interface {
	Load(ctx context.Context) (string, error)
	Store(ctx context.Context, udid string) error
	Lock(ctx context.Context) func()
}

// MemoryDeviceCache caches the device id for the life of the process.
type MemoryDeviceCache struct {
	mu     sync.RWMutex
	create sync.Mutex
	udid   string
}

func NewMemoryDeviceCache() *MemoryDeviceCache {
	return &MemoryDeviceCache{}
}

func (m *MemoryDeviceCache) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.udid, nil
}

func (m *MemoryDeviceCache) Store(_ context.Context, udid string) error {
	m.mu.Lock()
	m.udid = udid
	m.mu.Unlock()
	return nil
}

func (m *MemoryDeviceCache) Lock(context.Context) func() {
	m.create.Lock()
	return m.create.Unlock
}

const (
	deviceKey     = "paymentlinks:link2pay:udid"
	deviceLockKey = "lock:paymentlinks:link2pay:device"
	deviceLockTTL = 30 * time.Second
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RedisDeviceCache shares the device id across instances. Device creation is
// serialised with a redislock lock; if the lock cannot be obtained the caller
// proceeds without it.
type RedisDeviceCache struct {
	kv     redisKV
	locker locker
	log    *logrus.Entry
}

func NewRedisDeviceCache(client *redis.Client, log *logrus.Entry) *RedisDeviceCache {
	return &RedisDeviceCache{kv: client, locker: redislock.New(client), log: log}
}

func (r *RedisDeviceCache) Load(ctx context.Context) (string, error) {
	udid, err := r.kv.Get(ctx, deviceKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return udid, err
}

func (r *RedisDeviceCache) Store(ctx context.Context, udid string) error {
	return r.kv.Set(ctx, deviceKey, udid, 0).Err()
}

func (r *RedisDeviceCache) Lock(ctx context.Context) func() {
	lock, err := r.locker.Obtain(ctx, deviceLockKey, deviceLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 25),
	})
	if err == redislock.ErrNotObtained {
		r.log.Warn("could not obtain device lock; proceeding without redis lock")
		return func() {}
	} else if err != nil {
		r.log.WithField("error", err.Error()).Warn("error obtaining device lock; proceeding without redis lock")
		return func() {}
	}
	return func() {
		_ = lock.Release(context.Background())
	}
}
