package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey derives the lookup key for one synthesis result. Two requests
// share an entry only when both the trimmed text and the voice identity
// match.
func CacheKey(text, voiceKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text) + "|" + voiceKey))
	return hex.EncodeToString(sum[:])
}

// Cache holds recently synthesized clips keyed by CacheKey. Lookups
// refresh an entry; inserting past capacity evicts the entry that has
// gone unused the longest.
type Cache struct {
	lru *lru.Cache[string, []byte]
}

// NewCache builds a cache holding at most size clips. A size of zero or
// less disables caching: every lookup misses and stores are dropped.
func NewCache(size int) *Cache {
	if size <= 0 {
		return &Cache{}
	}
	inner, err := lru.New[string, []byte](size)
	if err != nil {
		// lru.New fails only for non-positive sizes, excluded above.
		return &Cache{}
	}
	return &Cache{lru: inner}
}

func (c *Cache) Lookup(key string) ([]byte, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *Cache) Store(key string, audio []byte) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, audio)
}

func (c *Cache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
