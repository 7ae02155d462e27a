package position

import (
	"testing"
	"time"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestTracker_InterpolatesWhilePlaying(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(10_000, true, base)

	tests := []struct {
		after    time.Duration
		expected int64
	}{
		{0, 10_000},
		{250 * time.Millisecond, 10_250},
		{time.Second, 11_000},
		{1500 * time.Millisecond, 11_500},
	}

	for _, tt := range tests {
		if got := tr.EstimateElapsedMs(base.Add(tt.after)); got != tt.expected {
			t.Errorf("EstimateElapsedMs(+%v) = %d, expected %d", tt.after, got, tt.expected)
		}
	}
}

func TestTracker_NeverDecreasesBetweenSamples(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(5_000, true, base)

	first := tr.EstimateElapsedMs(base.Add(800 * time.Millisecond))
	// an earlier clock reading than the previous call
	second := tr.EstimateElapsedMs(base.Add(300 * time.Millisecond))
	if second < first {
		t.Errorf("EstimateElapsedMs() regressed from %d to %d", first, second)
	}

	// a clock reading before the anchor never subtracts
	tr.OnSample(5_000, true, base)
	if got := tr.EstimateElapsedMs(base.Add(-time.Second)); got != 5_000 {
		t.Errorf("EstimateElapsedMs() before anchor = %d, expected 5000", got)
	}
}

func TestTracker_PauseFreezes(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(42_000, false, base)

	for i := 0; i < 5; i++ {
		now := base.Add(time.Duration(i) * time.Second)
		if got := tr.EstimateElapsedMs(now); got != 42_000 {
			t.Errorf("EstimateElapsedMs(+%ds) while paused = %d, expected 42000", i, got)
		}
	}
}

func TestTracker_AcceptsBackwardSample(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(20_000, true, base)
	_ = tr.EstimateElapsedMs(base.Add(2 * time.Second))

	// a lagging poll reports an earlier position; it is still authoritative
	tr.OnSample(19_000, true, base.Add(2*time.Second))
	if got := tr.EstimateElapsedMs(base.Add(2 * time.Second)); got != 19_000 {
		t.Errorf("EstimateElapsedMs() after backward sample = %d, expected 19000", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(99_000, true, base)
	tr.Reset()

	if got := tr.EstimateElapsedMs(base.Add(time.Minute)); got != 0 {
		t.Errorf("EstimateElapsedMs() after Reset() = %d, expected 0", got)
	}
	if _, ok := tr.SinceLastSample(base); ok {
		t.Error("SinceLastSample() after Reset() should report no sample")
	}

	state := tr.State()
	if state.ElapsedMs != 0 || state.IsPlaying || !state.LastSampleAt.IsZero() {
		t.Errorf("State() after Reset() = %+v, expected zero value", state)
	}
}

func TestTracker_NegativeSampleClamped(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(-500, false, base)
	if got := tr.EstimateElapsedMs(base); got != 0 {
		t.Errorf("EstimateElapsedMs() = %d, expected 0", got)
	}
}

func TestTracker_SinceLastSample(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(0, true, base)

	since, ok := tr.SinceLastSample(base.Add(3 * time.Second))
	if !ok || since != 3*time.Second {
		t.Errorf("SinceLastSample() = %v, %v, expected 3s, true", since, ok)
	}
}

func TestTracker_PauseFreezeRealClock(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(1_000, false, time.Now())

	first := tr.EstimateElapsedMs(time.Now())
	time.Sleep(20 * time.Millisecond)
	second := tr.EstimateElapsedMs(time.Now())

	if first != second {
		t.Errorf("paused estimate moved from %d to %d", first, second)
	}
}

func TestTracker_PeekDoesNotRecord(t *testing.T) {
	tr := NewTracker()
	tr.OnSample(5_000, true, base)

	if got := tr.Peek(base.Add(2 * time.Second)); got != 7_000 {
		t.Errorf("Peek(+2s) = %d, expected 7000", got)
	}

	// a later peek must not raise the floor for the sync loop
	if got := tr.EstimateElapsedMs(base.Add(500 * time.Millisecond)); got != 5_500 {
		t.Errorf("EstimateElapsedMs(+500ms) after Peek = %d, expected 5500", got)
	}

	// peeks still respect the floor the sync loop recorded
	tr.EstimateElapsedMs(base.Add(time.Second))
	if got := tr.Peek(base.Add(200 * time.Millisecond)); got != 6_000 {
		t.Errorf("Peek(+200ms) = %d, expected the recorded 6000", got)
	}

	if got := NewTracker().Peek(base); got != 0 {
		t.Errorf("Peek() without a sample = %d, expected 0", got)
	}
}
