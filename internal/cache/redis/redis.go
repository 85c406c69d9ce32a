package redis

import (
	"context"

	rdb "github.com/redis/go-redis/v9"
)

type Cache struct{ c *rdb.Client }

func New(addr string, db int) *Cache {
	return &Cache{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

func (r *Cache) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.c.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (r *Cache) Set(ctx context.Context, key, value string) {
	_ = r.c.Set(ctx, key, value, 0).Err()
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }
