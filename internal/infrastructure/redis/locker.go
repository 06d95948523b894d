package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Libera solo si el token coincide: un lock expirado y retomado por otra réplica no se borra.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// lockClient subconjunto de go-redis usado por el locker.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Locker lock distribuido SET NX PX con token aleatorio.
type Locker struct {
	client     lockClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewLocker construye el locker. ttl acota cuánto puede quedar tomado si el proceso muere.
func NewLocker(client lockClient, ttl, retryDelay time.Duration) *Locker {
	return &Locker{client: client, prefix: "lock:", ttl: ttl, retryDelay: retryDelay}
}

// Lock reintenta hasta obtener el lock o hasta que ctx termine.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := l.prefix + key
	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Si falla, el TTL termina liberándolo.
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}, nil
}
