package retention

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"amparo/pkg/platform/sentinel"
)

const (
	lockKey = "amparo:retention:lock"
	lockTTL = 30 * time.Minute
)

// Lock guards against overlapping purge runs across instances. A nil client
// disables locking for single-process setups.
type Lock struct {
	client *redis.Client
	token  string
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client, token: uuid.NewString()}
}

func (l *Lock) Acquire(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, lockKey, l.token, lockTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrLockHeld
	}
	return nil
}

// Release deletes the lock only when this instance still holds it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0`
	return l.client.Eval(ctx, script, []string{lockKey}, l.token).Err()
}
