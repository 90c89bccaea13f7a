// Package ratelimit paces outbound model calls so free-tier quotas are
// spent evenly instead of in bursts that trip provider limits.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Limits is one provider's request budget.
type Limits struct {
	RPM           int           // requests per sliding minute
	MinInterval   time.Duration // floor between consecutive requests
	BurstCooldown time.Duration // pause once the window is nearly full
}

// providerLimits carries the free-tier budgets of the hosted providers.
// Local and paid providers get a permissive default.
var providerLimits = map[string]Limits{
	"gemini": {RPM: 15, MinInterval: 4 * time.Second, BurstCooldown: 10 * time.Second},
	"groq":   {RPM: 30, MinInterval: 8 * time.Second, BurstCooldown: 20 * time.Second},
}

var defaultLimits = Limits{RPM: 60, MinInterval: time.Second, BurstCooldown: 5 * time.Second}

// Watermarks over the sliding window. Above high, requests pause for the
// burst cooldown; above low, the minimum interval is stretched by half.
const (
	highWatermark = 0.9
	lowWatermark  = 0.7
)

// Scheduler paces requests for a single provider using a sliding one-minute
// window of recorded request times.
type Scheduler struct {
	provider string
	limits   Limits

	mu    sync.Mutex
	times []time.Time
	last  time.Time

	promptTokens     int64
	completionTokens int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a scheduler with the provider's known limits, or the
// permissive default for unknown providers.
func NewScheduler(provider string) *Scheduler {
	limits, ok := providerLimits[provider]
	if !ok {
		limits = defaultLimits
	}
	return &Scheduler{
		provider: provider,
		limits:   limits,
		now:      time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// WaitIfNeeded blocks until the next request may be sent. The delay grows
// with window pressure: minimum interval when quiet, 1.5x above the low
// watermark, the burst cooldown above the high watermark, and a wait for
// the oldest entry to expire when the window is full.
func (s *Scheduler) WaitIfNeeded(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := s.now()
		s.prune(now)

		var delay time.Duration
		used := len(s.times)
		switch {
		case used >= s.limits.RPM:
			delay = s.times[0].Add(time.Minute).Sub(now)
		case float64(used) >= highWatermark*float64(s.limits.RPM):
			delay = s.limits.BurstCooldown
		case float64(used) >= lowWatermark*float64(s.limits.RPM):
			delay = s.limits.MinInterval + s.limits.MinInterval/2
		default:
			delay = s.limits.MinInterval
		}
		if !s.last.IsZero() {
			if elapsed := now.Sub(s.last); elapsed < delay {
				delay -= elapsed
			} else if used < s.limits.RPM {
				delay = 0
			}
		} else if used == 0 {
			delay = 0
		}
		s.mu.Unlock()

		if delay <= 0 {
			return nil
		}
		log.Debug().
			Str("provider", s.provider).
			Int("window_used", used).
			Dur("delay", delay).
			Msg("pacing request")
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
		// A full window may still be full after one sleep; re-evaluate.
		s.mu.Lock()
		full := len(s.times) >= s.limits.RPM
		s.mu.Unlock()
		if !full {
			return nil
		}
	}
}

// Record notes that a request was just sent.
func (s *Scheduler) Record() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prune(now)
	s.times = append(s.times, now)
	s.last = now
}

// RecordUsage accumulates the token counts a provider reported for one
// call. Calls with no reported usage contribute zero.
func (s *Scheduler) RecordUsage(prompt, completion int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptTokens += int64(prompt)
	s.completionTokens += int64(completion)
}

// prune drops entries older than the window. Caller holds the lock.
func (s *Scheduler) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(s.times) && !s.times[i].After(cutoff) {
		i++
	}
	s.times = s.times[i:]
}

// Stats is a point-in-time view of the window, for health reporting.
type Stats struct {
	Provider         string  `json:"provider"`
	Used             int     `json:"used"`
	RPM              int     `json:"rpm"`
	Utilization      float64 `json:"utilization"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	return Stats{
		Provider:         s.provider,
		Used:             len(s.times),
		RPM:              s.limits.RPM,
		Utilization:      float64(len(s.times)) / float64(s.limits.RPM),
		PromptTokens:     s.promptTokens,
		CompletionTokens: s.completionTokens,
	}
}

// registry of per-provider schedulers so every component pacing calls to a
// provider shares one window.
var (
	regMu    sync.Mutex
	registry = map[string]*Scheduler{}
)

// For returns the process-wide scheduler for a provider.
func For(provider string) *Scheduler {
	regMu.Lock()
	defer regMu.Unlock()
	if s, ok := registry[provider]; ok {
		return s
	}
	s := NewScheduler(provider)
	registry[provider] = s
	return s
}

// ResetAll clears every scheduler window. Used by tests and by reset.
func ResetAll() {
	regMu.Lock()
	defer regMu.Unlock()
	registry = map[string]*Scheduler{}
}
