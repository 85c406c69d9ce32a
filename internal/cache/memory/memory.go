package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct{ c *gocache.Cache }

func New() *Cache {
	return &Cache{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Cache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

func (m *Cache) Set(_ context.Context, key, value string) {
	m.c.Set(key, value, gocache.NoExpiration)
}
