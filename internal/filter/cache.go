package filter

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Cache defaults
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheEntries = 10000
)

// RuleCache holds the enabled rules of recently active scopes for a bounded time.
// Entries never mix scopes. A nil *RuleCache caches nothing.
type RuleCache struct {
	lru *expirable.LRU[models.Scope, []models.FilterRule]
}

// NewRuleCache creates a cache keeping each scope's rules for ttl, evicting
// the least recently used scope once maxEntries are held.
// Non-positive arguments select the defaults.
func NewRuleCache(ttl time.Duration, maxEntries int) *RuleCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &RuleCache{lru: expirable.NewLRU[models.Scope, []models.FilterRule](maxEntries, nil, ttl)}
}

// Get returns the cached rules of scope. The slice must not be modified.
func (c *RuleCache) Get(scope models.Scope) ([]models.FilterRule, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(scope)
}

// Put stores the rules of scope
func (c *RuleCache) Put(scope models.Scope, rules []models.FilterRule) {
	if c == nil {
		return
	}
	c.lru.Add(scope, rules)
}

// Invalidate drops the cached rules of scope
func (c *RuleCache) Invalidate(scope models.Scope) {
	if c == nil {
		return
	}
	c.lru.Remove(scope)
}

// Len returns the number of cached scopes
func (c *RuleCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
