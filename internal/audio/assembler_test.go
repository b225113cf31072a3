package audio

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAssembler_AppendThenTake(t *testing.T) {
	a := NewAssembler(0)
	sid := uuid.New()

	a.Append(sid, 1, []byte("abc"))
	a.Append(sid, 1, []byte("def"))

	got := a.Take(sid, 1)
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("take = %q, want %q", got, "abcdef")
	}
	if again := a.Take(sid, 1); len(again) != 0 {
		t.Fatalf("second take = %q, want empty", again)
	}
}

func TestAssembler_TakeUnknownKeyIsEmpty(t *testing.T) {
	a := NewAssembler(0)
	got := a.Take(uuid.New(), 7)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAssembler_KeysAreIndependent(t *testing.T) {
	a := NewAssembler(0)
	sid := uuid.New()
	other := uuid.New()

	a.Append(sid, 1, []byte("q1"))
	a.Append(sid, 2, []byte("q2"))
	a.Append(other, 1, []byte("x"))

	if got := string(a.Take(sid, 2)); got != "q2" {
		t.Fatalf("take(sid,2) = %q", got)
	}
	if got := string(a.Take(sid, 1)); got != "q1" {
		t.Fatalf("take(sid,1) = %q", got)
	}
	if a.Len() != 1 {
		t.Fatalf("len = %d, want 1", a.Len())
	}
}

func TestAssembler_RollingTailKeepsRecentBytes(t *testing.T) {
	a := NewAssembler(4)
	sid := uuid.New()

	a.Append(sid, 1, []byte("abc"))
	if n := a.Append(sid, 1, []byte("defg")); n != 4 {
		t.Fatalf("buffered len = %d, want 4", n)
	}
	if got := string(a.Take(sid, 1)); got != "defg" {
		t.Fatalf("take = %q, want %q", got, "defg")
	}
}

func TestAssembler_PeekDoesNotClear(t *testing.T) {
	a := NewAssembler(0)
	sid := uuid.New()
	a.Append(sid, 3, []byte("hello"))

	p := a.Peek(sid, 3)
	p[0] = 'X'
	if got := string(a.Take(sid, 3)); got != "hello" {
		t.Fatalf("take after peek = %q, want hello", got)
	}
}

func TestAssembler_ConcurrentAppendsAreNotLost(t *testing.T) {
	a := NewAssembler(1 << 20)
	sid := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Append(sid, 1, []byte{1, 2})
			}
		}()
	}
	wg.Wait()

	if got := len(a.Take(sid, 1)); got != 16*100*2 {
		t.Fatalf("len = %d, want %d", got, 16*100*2)
	}
}

func pcmTone(samples int, amplitude int16) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("rms(nil) = %v", got)
	}
	if got := RMS(make([]byte, 64)); got != 0 {
		t.Fatalf("rms(silence) = %v", got)
	}
	got := RMS(pcmTone(64, 16384))
	if got < 0.49 || got > 0.51 {
		t.Fatalf("rms(half scale) = %v, want ~0.5", got)
	}
}

func TestClientSignaled(t *testing.T) {
	var p ClientSignaled
	if p.ShouldFinalize(uuid.New(), 1, []byte("x"), true) {
		t.Fatalf("partial fragment must not finalize")
	}
	if !p.ShouldFinalize(uuid.New(), 1, nil, false) {
		t.Fatalf("final fragment must finalize")
	}
}

func TestEnergyPolicy_FinalizesAfterSilenceFollowingSpeech(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p := NewEnergyPolicy(0.01, time.Second, clock)
	sid := uuid.New()

	silence := make([]byte, 320)
	speech := pcmTone(160, 8000)

	// leading silence never finalizes
	now = now.Add(5 * time.Second)
	if p.ShouldFinalize(sid, 1, silence, true) {
		t.Fatalf("leading silence must not finalize")
	}
	if p.ShouldFinalize(sid, 1, speech, true) {
		t.Fatalf("speech must not finalize")
	}
	now = now.Add(500 * time.Millisecond)
	if p.ShouldFinalize(sid, 1, silence, true) {
		t.Fatalf("short silence must not finalize")
	}
	now = now.Add(600 * time.Millisecond)
	if !p.ShouldFinalize(sid, 1, silence, true) {
		t.Fatalf("expected finalize after silence window")
	}
}

func TestEnergyPolicy_ClientFinalAlwaysWins(t *testing.T) {
	p := NewEnergyPolicy(0.01, time.Hour, nil)
	if !p.ShouldFinalize(uuid.New(), 1, pcmTone(10, 8000), false) {
		t.Fatalf("final marker must finalize")
	}
}
