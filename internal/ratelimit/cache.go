package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/maypok86/otter"
)

const cacheCapacity = 100

// ResponseCache memoises final answers keyed by provider, model, the
// fingerprint of the indexed content and the question, so repeating a
// question spends no quota at all. Re-indexing changes the fingerprint
// and naturally invalidates answers built on the old content. Entries
// expire after the configured TTL.
type ResponseCache struct {
	cache otter.Cache[string, string]
}

// NewResponseCache builds a cache holding up to 100 answers for ttl each.
func NewResponseCache(ttl time.Duration) (*ResponseCache, error) {
	c, err := otter.MustBuilder[string, string](cacheCapacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: c}, nil
}

func cacheKey(provider, model, fingerprint, question string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + fingerprint + "\x00" + question))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached answer, if any.
func (r *ResponseCache) Get(provider, model, fingerprint, question string) (string, bool) {
	return r.cache.Get(cacheKey(provider, model, fingerprint, question))
}

// Set stores an answer.
func (r *ResponseCache) Set(provider, model, fingerprint, question, answer string) {
	r.cache.Set(cacheKey(provider, model, fingerprint, question), answer)
}

// Clear empties the cache.
func (r *ResponseCache) Clear() {
	r.cache.Clear()
}
