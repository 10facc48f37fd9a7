package ingest

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"meddoc/internal/classifier"
)

// DedupCache remembers classifications by content hash so identical bytes
// arriving under another name skip the classifier.
type DedupCache struct {
	cache *expirable.LRU[string, classifier.Result]
}

// NewDedupCache returns a cache holding size entries for ttl. A non-positive
// size disables caching.
func NewDedupCache(size int, ttl time.Duration) *DedupCache {
	if size <= 0 {
		return nil
	}
	return &DedupCache{cache: expirable.NewLRU[string, classifier.Result](size, nil, ttl)}
}

// Get returns the cached result for hash.
func (d *DedupCache) Get(hash string) (classifier.Result, bool) {
	if d == nil || hash == "" {
		return classifier.Result{}, false
	}
	res, ok := d.cache.Get(hash)
	if ok {
		dedupHitsTotal.Inc()
	}
	return res, ok
}

// Add stores result under hash.
func (d *DedupCache) Add(hash string, result classifier.Result) {
	if d == nil || hash == "" {
		return
	}
	d.cache.Add(hash, result)
}

// Len returns the number of live entries.
func (d *DedupCache) Len() int {
	if d == nil {
		return 0
	}
	return d.cache.Len()
}
