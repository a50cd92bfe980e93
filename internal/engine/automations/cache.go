package automations

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

// ListCache keeps per-user automation lists for a short TTL. Keys are
// "<user>|<status>|<client>" so one user's entries can be dropped together.
type ListCache struct {
	lru *expirable.LRU[string, []*models.Automation]
}

func NewListCache(size int, ttl time.Duration) *ListCache {
	if size <= 0 {
		size = 1024
	}
	return &ListCache{lru: expirable.NewLRU[string, []*models.Automation](size, nil, ttl)}
}

func cacheKey(userID string, filter repositories.AutomationFilter) string {
	return userID + "|" + string(filter.Status) + "|" + filter.ClientID
}

func (c *ListCache) Get(userID string, filter repositories.AutomationFilter) ([]*models.Automation, bool) {
	return c.lru.Get(cacheKey(userID, filter))
}

func (c *ListCache) Set(userID string, filter repositories.AutomationFilter, list []*models.Automation) {
	c.lru.Add(cacheKey(userID, filter), list)
}

// Invalidate drops every cached list belonging to userID.
func (c *ListCache) Invalidate(userID string) {
	prefix := userID + "|"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

func (c *ListCache) Len() int {
	return c.lru.Len()
}
