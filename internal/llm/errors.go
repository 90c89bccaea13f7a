package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRateLimited marks provider responses that should trigger backoff or a
// model advance rather than a hard failure.
var ErrRateLimited = errors.New("rate limited")

// ErrAllModelsExhausted is returned when every model in a provider's
// fallback list has been tried without producing an answer.
var ErrAllModelsExhausted = errors.New("all models exhausted")

// apiError converts a non-200 provider response into an error, wrapping
// ErrRateLimited when the status or body indicates quota exhaustion.
func apiError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if status == http.StatusTooManyRequests || looksRateLimited(msg) {
		return fmt.Errorf("%s returned %d: %s: %w", provider, status, msg, ErrRateLimited)
	}
	return fmt.Errorf("%s returned %d: %s", provider, status, msg)
}

// looksRateLimited matches the quota phrases the supported providers put in
// error bodies, since some report quota exhaustion with non-429 statuses.
func looksRateLimited(body string) bool {
	for _, marker := range []string{"RESOURCE_EXHAUSTED", "rate_limit", "rate limit", "quota"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err stems from provider throttling.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
