package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a scheduler without real sleeping: sleeps advance the
// clock instead.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel bool
}

func newFakeScheduler(provider string) (*Scheduler, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewScheduler(provider)
	s.now = func() time.Time { return clk.now }
	s.sleep = func(ctx context.Context, d time.Duration) error {
		if clk.cancel {
			return context.Canceled
		}
		clk.slept = append(clk.slept, d)
		clk.now = clk.now.Add(d)
		return nil
	}
	return s, clk
}

func TestFirstRequestIsImmediate(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	require.NoError(t, s.WaitIfNeeded(context.Background()))
	assert.Empty(t, clk.slept)
}

func TestMinIntervalEnforced(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	require.NoError(t, s.WaitIfNeeded(context.Background()))
	s.Record()

	clk.now = clk.now.Add(time.Second)
	require.NoError(t, s.WaitIfNeeded(context.Background()))

	// gemini floor is 4s; 1s elapsed, so 3s remain.
	require.Len(t, clk.slept, 1)
	assert.Equal(t, 3*time.Second, clk.slept[0])
}

func TestLowWatermarkStretchesInterval(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	// 11 of 15 used puts the window above 0.7.
	for i := 0; i < 11; i++ {
		s.Record()
	}
	require.NoError(t, s.WaitIfNeeded(context.Background()))
	require.Len(t, clk.slept, 1)
	assert.Equal(t, 6*time.Second, clk.slept[0]) // 1.5 x 4s
}

func TestHighWatermarkTriggersCooldown(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	for i := 0; i < 14; i++ {
		s.Record()
	}
	require.NoError(t, s.WaitIfNeeded(context.Background()))
	require.Len(t, clk.slept, 1)
	assert.Equal(t, 10*time.Second, clk.slept[0])
}

func TestFullWindowWaitsForExpiry(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	for i := 0; i < 15; i++ {
		s.Record()
	}
	require.NoError(t, s.WaitIfNeeded(context.Background()))
	require.NotEmpty(t, clk.slept)

	st := s.Stats()
	assert.Less(t, st.Used, st.RPM, "window must have room after waiting")
}

func TestWindowSlides(t *testing.T) {
	s, clk := newFakeScheduler("groq")
	for i := 0; i < 10; i++ {
		s.Record()
	}
	assert.Equal(t, 10, s.Stats().Used)

	clk.now = clk.now.Add(61 * time.Second)
	assert.Equal(t, 0, s.Stats().Used)
}

func TestWaitHonoursContext(t *testing.T) {
	s, clk := newFakeScheduler("gemini")
	s.Record()
	clk.cancel = true
	err := s.WaitIfNeeded(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistrySharesSchedulers(t *testing.T) {
	ResetAll()
	t.Cleanup(ResetAll)
	a := For("gemini")
	b := For("gemini")
	assert.Same(t, a, b)
	assert.NotSame(t, a, For("groq"))
}

func TestRecordUsageAccumulates(t *testing.T) {
	s, _ := newFakeScheduler("gemini")
	s.RecordUsage(100, 20)
	s.RecordUsage(50, 5)

	stats := s.Stats()
	assert.Equal(t, int64(150), stats.PromptTokens)
	assert.Equal(t, int64(25), stats.CompletionTokens)
}

func TestResponseCache(t *testing.T) {
	c, err := NewResponseCache(time.Minute)
	require.NoError(t, err)

	_, ok := c.Get("gemini", "gemini-2.0-flash", "fp1", "what does run do?")
	assert.False(t, ok)

	c.Set("gemini", "gemini-2.0-flash", "fp1", "what does run do?", "it runs")
	got, ok := c.Get("gemini", "gemini-2.0-flash", "fp1", "what does run do?")
	require.True(t, ok)
	assert.Equal(t, "it runs", got)

	// Same question against another model is a different entry.
	_, ok = c.Get("gemini", "gemini-1.5-flash", "fp1", "what does run do?")
	assert.False(t, ok)

	// Re-indexed content means a different fingerprint, so the stale
	// answer is not served.
	_, ok = c.Get("gemini", "gemini-2.0-flash", "fp2", "what does run do?")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("gemini", "gemini-2.0-flash", "fp1", "what does run do?")
	assert.False(t, ok)
}
