package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FinalizePolicy decides whether an inbound fragment completes the answer.
type FinalizePolicy interface {
	ShouldFinalize(sessionID uuid.UUID, questionID int64, chunk []byte, partial bool) bool
	Reset(sessionID uuid.UUID, questionID int64)
}

// ClientSignaled finalizes only when the client marks a fragment as final.
type ClientSignaled struct{}

// ShouldFinalize implements FinalizePolicy.
func (ClientSignaled) ShouldFinalize(_ uuid.UUID, _ int64, _ []byte, partial bool) bool {
	return !partial
}

// Reset implements FinalizePolicy.
func (ClientSignaled) Reset(uuid.UUID, int64) {}

// EnergyPolicy is a voice-activity finalize policy for PCM16LE audio: once speech has been heard,
// a continuous run of low-energy fragments lasting Silence finalizes the answer. A client final
// marker always finalizes.
type EnergyPolicy struct {
	Threshold float64       // normalized RMS in [0,1]
	Silence   time.Duration // silence window after speech
	now       func() time.Time

	mu    sync.Mutex
	state map[Key]*vadState
}

type vadState struct {
	speechSeen bool
	lastSpeech time.Time
}

// NewEnergyPolicy creates a VAD policy. now may be nil.
func NewEnergyPolicy(threshold float64, silence time.Duration, now func() time.Time) *EnergyPolicy {
	if threshold <= 0 {
		threshold = 0.01
	}
	if silence <= 0 {
		silence = 1200 * time.Millisecond
	}
	if now == nil {
		now = time.Now
	}
	return &EnergyPolicy{Threshold: threshold, Silence: silence, now: now, state: make(map[Key]*vadState)}
}

// ShouldFinalize implements FinalizePolicy.
func (p *EnergyPolicy) ShouldFinalize(sessionID uuid.UUID, questionID int64, chunk []byte, partial bool) bool {
	k := Key{SessionID: sessionID, QuestionID: questionID}
	if !partial {
		p.Reset(sessionID, questionID)
		return true
	}
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state[k]
	if st == nil {
		st = &vadState{lastSpeech: now}
		p.state[k] = st
	}
	if RMS(chunk) > p.Threshold {
		st.speechSeen = true
		st.lastSpeech = now
		return false
	}
	if !st.speechSeen {
		return false
	}
	if now.Sub(st.lastSpeech) >= p.Silence {
		delete(p.state, k)
		return true
	}
	return false
}

// Reset implements FinalizePolicy.
func (p *EnergyPolicy) Reset(sessionID uuid.UUID, questionID int64) {
	p.mu.Lock()
	delete(p.state, Key{SessionID: sessionID, QuestionID: questionID})
	p.mu.Unlock()
}

// RMS returns the normalized root-mean-square energy of PCM16LE samples. A trailing odd byte is
// ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
