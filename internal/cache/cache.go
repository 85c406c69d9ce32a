// Package cache is the login side cache: it spares the store a round trip
// when resolving the acting account's login for audit stamps. It is
// best-effort; a miss or stale value never affects authorization decisions.
package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// LoginKey derives the cache key for an account's login.
func LoginKey(accountID uuid.UUID) string {
	return fmt.Sprintf("userAccount:%s:login", accountID)
}
