// Package livesignal computes advisory confidence and interrupt signals from incremental
// transcript text. Nothing here is authoritative; state may be dropped at any time.
package livesignal

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/aura-interview/backend/config"
)

// Confidence is the coarse answer-quality bucket.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Interrupt reasons.
const (
	ReasonLowConfidence = "low_confidence"
	ReasonRambling      = "rambling"
)

const (
	followupLowConfidence = "Could you explain that more simply?"
	followupRambling      = "Let me pause you there. Can you summarize your main point?"

	maxTextRunes = 2000
	shardCount   = 32
)

var fillerWords = map[string]bool{
	"uh": true, "um": true, "like": true, "basically": true, "actually": true, "so": true,
}

// topicTerms maps a question keyword to terms a relevant answer is expected to mention.
var topicTerms = map[string][]string{
	"dsa":      {"data structure", "algorithm"},
	"api":      {"endpoint", "request", "response"},
	"database": {"table", "row", "column", "query"},
}

// Signal is the analyzer output for one observation.
type Signal struct {
	QuestionID        int64
	Confidence        Confidence
	WordCount         int
	FillerCount       int
	Interrupt         bool
	Reason            string
	SuggestedFollowup string
	// Drift is the question topic keyword the answer has not yet touched on, if any.
	Drift         string
	DriftFollowup string
}

type key struct {
	sessionID  uuid.UUID
	questionID int64
}

type state struct {
	words         int
	fillers       int
	streak        int
	startedAt     time.Time
	lastInterrupt time.Time
	text          string
}

type shard struct {
	mu     sync.Mutex
	states map[key]*state
}

// Analyzer holds live state per (session, question).
type Analyzer struct {
	cfg    config.LiveConfig
	now    func() time.Time
	shards [shardCount]*shard
}

// NewAnalyzer creates an analyzer. now may be nil.
func NewAnalyzer(cfg config.LiveConfig, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	a := &Analyzer{cfg: cfg, now: now}
	for i := range a.shards {
		a.shards[i] = &shard{states: make(map[key]*state)}
	}
	return a
}

func (a *Analyzer) shardFor(k key) *shard {
	var b [24]byte
	copy(b[:16], k.sessionID[:])
	binary.LittleEndian.PutUint64(b[16:], uint64(k.questionID))
	return a.shards[xxhash.Sum64(b[:])%shardCount]
}

// Observe folds an incremental transcript fragment into the live state and returns the
// resulting signal.
func (a *Analyzer) Observe(sessionID uuid.UUID, questionID int64, fragment, questionText string) Signal {
	words := tokenize(fragment)
	return a.update(sessionID, questionID, questionText, func(st *state) {
		st.words += len(words)
		st.fillers += countFillers(words)
		st.text = appendText(st.text, fragment)
	})
}

// ObserveTranscript replaces the running transcript with a full re-recognition of the answer so
// far. Counts are recomputed from transcript; timing and streak carry over.
func (a *Analyzer) ObserveTranscript(sessionID uuid.UUID, questionID int64, transcript, questionText string) Signal {
	words := tokenize(transcript)
	return a.update(sessionID, questionID, questionText, func(st *state) {
		st.words = len(words)
		st.fillers = countFillers(words)
		st.text = appendText("", transcript)
	})
}

func (a *Analyzer) update(sessionID uuid.UUID, questionID int64, questionText string, apply func(*state)) Signal {
	k := key{sessionID: sessionID, questionID: questionID}
	now := a.now()

	s := a.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[k]
	if st == nil {
		st = &state{startedAt: now}
		s.states[k] = st
	}
	apply(st)

	conf := a.confidence(st.words, st.fillers)
	if conf == ConfidenceLow {
		st.streak++
	} else {
		st.streak = 0
	}

	sig := Signal{
		QuestionID:  questionID,
		Confidence:  conf,
		WordCount:   st.words,
		FillerCount: st.fillers,
	}

	if st.words >= a.cfg.MinWords {
		if topic, ok := drift(questionText, st.text); ok {
			sig.Drift = topic
			sig.DriftFollowup = fmt.Sprintf("Can you clearly explain what %s means?", strings.ToUpper(topic))
		}
	}

	reason := a.interruptReason(st, conf, now)
	if reason == "" {
		return sig
	}
	st.lastInterrupt = now
	sig.Interrupt = true
	sig.Reason = reason
	switch reason {
	case ReasonLowConfidence:
		sig.SuggestedFollowup = followupLowConfidence
	case ReasonRambling:
		sig.SuggestedFollowup = followupRambling
	}
	return sig
}

func (a *Analyzer) confidence(words, fillers int) Confidence {
	if words < a.cfg.LowWordThreshold {
		return ConfidenceLow
	}
	if words > 0 && float64(fillers)/float64(words) > a.cfg.FillerRatio {
		return ConfidenceMedium
	}
	return ConfidenceHigh
}

// interruptReason applies the four gates: warm-up, minimum words, cool-down, then streak or rambling.
func (a *Analyzer) interruptReason(st *state, conf Confidence, now time.Time) string {
	if now.Sub(st.startedAt) < a.cfg.WarmUp {
		return ""
	}
	if st.words < a.cfg.MinWords {
		return ""
	}
	if !st.lastInterrupt.IsZero() && now.Sub(st.lastInterrupt) < a.cfg.Cooldown {
		return ""
	}
	if st.streak >= a.cfg.StreakThreshold {
		return ReasonLowConfidence
	}
	if st.words > a.cfg.RamblingWords && conf != ConfidenceHigh {
		return ReasonRambling
	}
	return ""
}

// Clear drops the state for one question.
func (a *Analyzer) Clear(sessionID uuid.UUID, questionID int64) {
	k := key{sessionID: sessionID, questionID: questionID}
	s := a.shardFor(k)
	s.mu.Lock()
	delete(s.states, k)
	s.mu.Unlock()
}

// Len returns the number of tracked questions.
func (a *Analyzer) Len() int {
	n := 0
	for _, s := range a.shards {
		s.mu.Lock()
		n += len(s.states)
		s.mu.Unlock()
	}
	return n
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func countFillers(words []string) int {
	n := 0
	for i, w := range words {
		if fillerWords[w] {
			n++
			continue
		}
		if w == "know" && i > 0 && words[i-1] == "you" {
			n++
		}
	}
	return n
}

func appendText(prev, fragment string) string {
	merged := strings.TrimSpace(prev + " " + fragment)
	if r := []rune(merged); len(r) > maxTextRunes {
		merged = string(r[len(r)-maxTextRunes:])
	}
	return merged
}

func drift(questionText, answer string) (string, bool) {
	if questionText == "" {
		return "", false
	}
	q := tokenize(questionText)
	t := strings.ToLower(answer)
	for _, w := range q {
		terms, ok := topicTerms[w]
		if !ok {
			continue
		}
		found := false
		for _, term := range terms {
			if strings.Contains(t, term) {
				found = true
				break
			}
		}
		if !found {
			return w, true
		}
	}
	return "", false
}
