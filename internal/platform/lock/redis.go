package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/sentinel"
)

// Redis is the cross-process locker for deployments where several importer
// processes run concurrently. SET NX with a TTL plus a token-checked release
// so a crashed holder cannot wedge a contact forever and a slow holder
// cannot release someone else's lock.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	onWait func()
}

// NewRedis wraps a connected client. ttl bounds how long a crashed process
// can hold a contact; retry is the polling interval while blocked.
func NewRedis(client *redis.Client, ttl, retry time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &Redis{client: client, ttl: ttl, retry: retry}
}

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// OnWait registers a callback fired once per Acquire that finds the lock
// already held. Set before the locker is shared.
func (r *Redis) OnWait(fn func()) {
	r.onWait = fn
}

func (r *Redis) key(contactID id.ContactID) string {
	return "coalesce:contact-lock:" + contactID.String()
}

func (r *Redis) Acquire(ctx context.Context, contactID id.ContactID) (func(), error) {
	token := uuid.New().String()
	key := r.key(contactID)

	waited := false
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, sentinel.ErrUnavailable
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
			}, nil
		}

		if !waited {
			waited = true
			if r.onWait != nil {
				r.onWait()
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}
}
