package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/crm/internal/port"
)

const (
	emailKeyPrefix      = "crm:email:"
	defaultEmailLockTTL = 30 * time.Second
)

var _ port.EmailGuard = (*RedisAdapter)(nil)

// releaseScript deletes the reservation only if this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultEmailLockTTL
	}
	return &RedisAdapter{client: client, owner: uuid.NewString(), ttl: ttl}
}

func (r *RedisAdapter) Reserve(ctx context.Context, email string) (bool, error) {
	ok, err := r.client.SetNX(ctx, emailKeyPrefix+email, r.owner, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, email string) error {
	return releaseScript.Run(ctx, r.client, []string{emailKeyPrefix + email}, r.owner).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
