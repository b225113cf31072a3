package livesignal

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-interview/backend/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAnalyzer() (*Analyzer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewAnalyzer(config.DefaultLive(), clock.now), clock
}

func TestObserve_BelowMinWordsNeverInterrupts(t *testing.T) {
	a, clock := newTestAnalyzer()
	sid := uuid.New()

	for i := 0; i < 9; i++ {
		sig := a.Observe(sid, 1, "um", "")
		if sig.Interrupt {
			t.Fatalf("observation %d: interrupt with only %d words", i, sig.WordCount)
		}
		if sig.Confidence != ConfidenceLow {
			t.Fatalf("observation %d: confidence = %s, want low", i, sig.Confidence)
		}
		clock.advance(30 * time.Second)
	}
}

func TestObserve_WarmUpSuppressesEarlyInterrupt(t *testing.T) {
	a, clock := newTestAnalyzer()
	sid := uuid.New()

	for i := 0; i < 3; i++ {
		if sig := a.Observe(sid, 1, "um um um um", ""); sig.Interrupt {
			t.Fatalf("interrupt inside warm-up at observation %d", i)
		}
		clock.advance(time.Second)
	}

	clock.advance(6 * time.Second)
	sig := a.Observe(sid, 1, "um", "")
	if !sig.Interrupt {
		t.Fatalf("expected interrupt after warm-up, got %+v", sig)
	}
	if sig.Reason != ReasonLowConfidence {
		t.Fatalf("reason = %q, want %q", sig.Reason, ReasonLowConfidence)
	}
	if sig.SuggestedFollowup == "" {
		t.Fatalf("expected a suggested followup")
	}
}

func TestObserve_InterruptsRespectCooldown(t *testing.T) {
	a, clock := newTestAnalyzer()
	sid := uuid.New()
	fragment := strings.Repeat("um ", 10)

	var fired []time.Time
	for i := 0; i < 40; i++ {
		sig := a.Observe(sid, 1, fragment, "")
		if sig.Interrupt {
			if sig.Reason != ReasonRambling {
				t.Fatalf("reason = %q, want %q", sig.Reason, ReasonRambling)
			}
			fired = append(fired, clock.now())
		}
		clock.advance(time.Second)
	}

	if len(fired) < 2 {
		t.Fatalf("expected repeated rambling interrupts, got %d", len(fired))
	}
	cooldown := config.DefaultLive().Cooldown
	for i := 1; i < len(fired); i++ {
		if gap := fired[i].Sub(fired[i-1]); gap < cooldown {
			t.Fatalf("interrupts %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestObserve_NonLowResetsStreak(t *testing.T) {
	a, clock := newTestAnalyzer()
	sid := uuid.New()

	a.Observe(sid, 1, "um", "")
	a.Observe(sid, 1, "uh", "")
	clock.advance(10 * time.Second)

	sig := a.Observe(sid, 1, "hash maps trade memory for constant time lookups using buckets and a good hash function", "")
	if sig.Confidence != ConfidenceHigh {
		t.Fatalf("confidence = %s, want high (words=%d fillers=%d)", sig.Confidence, sig.WordCount, sig.FillerCount)
	}
	if sig.Interrupt {
		t.Fatalf("unexpected interrupt after streak reset")
	}
}

func TestObserve_FillerRatioGivesMedium(t *testing.T) {
	a, _ := newTestAnalyzer()
	sig := a.Observe(uuid.New(), 1, "so um basically you know like it is a list of things that we sort actually", "")
	if sig.Confidence != ConfidenceMedium {
		t.Fatalf("confidence = %s, want medium (words=%d fillers=%d)", sig.Confidence, sig.WordCount, sig.FillerCount)
	}
}

func TestObserve_DriftFlagsMissingTopicTerms(t *testing.T) {
	a, _ := newTestAnalyzer()
	sid := uuid.New()
	question := "Describe how you would design an API for a todo app"

	sig := a.Observe(sid, 1, "I would start with the user interface and pick nice colors for the buttons", question)
	if sig.Drift != "api" {
		t.Fatalf("drift = %q, want api", sig.Drift)
	}
	if sig.DriftFollowup == "" {
		t.Fatalf("expected drift followup")
	}

	sig = a.Observe(sid, 1, "each endpoint accepts a JSON request", question)
	if sig.Drift != "" {
		t.Fatalf("drift = %q after on-topic text, want none", sig.Drift)
	}
}

func TestClear_ResetsState(t *testing.T) {
	a, _ := newTestAnalyzer()
	sid := uuid.New()

	a.Observe(sid, 1, "one two three", "")
	a.Observe(sid, 2, "four", "")
	a.Clear(sid, 1)

	if a.Len() != 1 {
		t.Fatalf("len = %d, want 1", a.Len())
	}
	if sig := a.Observe(sid, 1, "five", ""); sig.WordCount != 1 {
		t.Fatalf("word count after clear = %d, want 1", sig.WordCount)
	}
}

func TestObserveTranscript_ReplacesCounts(t *testing.T) {
	a, _ := newTestAnalyzer()
	sid := uuid.New()

	a.ObserveTranscript(sid, 1, "um a hash map stores", "")
	sig := a.ObserveTranscript(sid, 1, "um a hash map stores keys and values", "")
	if sig.WordCount != 8 {
		t.Fatalf("word count = %d, want 8", sig.WordCount)
	}
	if sig.FillerCount != 1 {
		t.Fatalf("filler count = %d, want 1", sig.FillerCount)
	}
}
