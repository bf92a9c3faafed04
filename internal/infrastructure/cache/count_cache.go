// Package cache holds the process-local count cache.
//
// Record counts are immutable for a given release partition and filter
// set, so a small in-memory LRU avoids re-running the most expensive
// statement the API issues.
package cache

import (
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"
)

// DefaultCountCacheSize bounds the number of cached counts.
const DefaultCountCacheSize = 2048

// CountCache memoises total-record counts keyed by the exact statement
// and its bound arguments.
type CountCache struct {
	entries *lru.Cache[string, int]
	hits    prometheus.Counter
	misses  prometheus.Counter
}

// NewCountCache builds a cache with the given capacity, registering its
// hit and miss counters with reg. A nil reg uses the default registerer.
func NewCountCache(size int, reg prometheus.Registerer) (*CountCache, error) {
	if size <= 0 {
		size = DefaultCountCacheSize
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	entries, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("creating count cache: %w", err)
	}

	factory := promauto.With(reg)

	return &CountCache{
		entries: entries,
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "count_cache_hits_total",
			Help: "Number of count queries served from the cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "count_cache_misses_total",
			Help: "Number of count queries that went to the database.",
		}),
	}, nil
}

// Key derives the cache key for a rendered statement and its arguments.
// The statement text embeds the partition id and filter fragment, so two
// requests share a key only when the database would return the same count.
func Key(sql string, arguments []any) string {
	h, _ := blake2b.New256(nil)

	h.Write([]byte(sql))
	for i, arg := range arguments {
		var idx [4]byte
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		h.Write(idx[:])
		fmt.Fprintf(h, "%v", arg)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get looks up a memoised count.
func (c *CountCache) Get(key string) (int, bool) {
	count, ok := c.entries.Get(key)
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return count, ok
}

// Add memoises a count.
func (c *CountCache) Add(key string, count int) {
	c.entries.Add(key, count)
}
