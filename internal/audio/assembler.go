// Package audio accumulates binary answer audio per (session, question) until it is finalized.
package audio

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// DefaultMaxBytes is about two minutes of 16 kHz mono PCM16.
const DefaultMaxBytes = 2 * 60 * 16000 * 2

const shardCount = 32

// Key identifies one answer buffer.
type Key struct {
	SessionID  uuid.UUID
	QuestionID int64
}

func (k Key) hash() uint64 {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.Write(k.SessionID[:])
	_, _ = d.WriteString(strconv.FormatInt(k.QuestionID, 10))
	return d.Sum64()
}

type shard struct {
	mu   sync.Mutex
	bufs map[Key][]byte
}

// Assembler holds ephemeral audio buffers. Keys hash to independent shards so appends for
// different answers never contend on one lock.
type Assembler struct {
	maxBytes int
	shards   [shardCount]*shard
}

// NewAssembler creates an assembler that keeps at most maxBytes per key (rolling tail).
func NewAssembler(maxBytes int) *Assembler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	a := &Assembler{maxBytes: maxBytes}
	for i := range a.shards {
		a.shards[i] = &shard{bufs: make(map[Key][]byte)}
	}
	return a
}

func (a *Assembler) shardFor(k Key) *shard {
	return a.shards[k.hash()%shardCount]
}

// Append concatenates chunk onto the buffer for (sessionID, questionID), keeping only the most
// recent maxBytes. Returns the buffered length after the append.
func (a *Assembler) Append(sessionID uuid.UUID, questionID int64, chunk []byte) int {
	k := Key{SessionID: sessionID, QuestionID: questionID}
	s := a.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.bufs[k], chunk...)
	if over := len(buf) - a.maxBytes; over > 0 {
		tail := make([]byte, a.maxBytes)
		copy(tail, buf[over:])
		buf = tail
	}
	s.bufs[k] = buf
	return len(buf)
}

// Take atomically returns and clears the buffer. The result may be empty.
func (a *Assembler) Take(sessionID uuid.UUID, questionID int64) []byte {
	k := Key{SessionID: sessionID, QuestionID: questionID}
	s := a.shardFor(k)
	s.mu.Lock()
	buf := s.bufs[k]
	delete(s.bufs, k)
	s.mu.Unlock()
	if buf == nil {
		return []byte{}
	}
	return buf
}

// Peek returns a copy of the current buffer without clearing it.
func (a *Assembler) Peek(sessionID uuid.UUID, questionID int64) []byte {
	k := Key{SessionID: sessionID, QuestionID: questionID}
	s := a.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.bufs[k]))
	copy(out, s.bufs[k])
	return out
}

// Drop discards the buffer for a key, if any.
func (a *Assembler) Drop(sessionID uuid.UUID, questionID int64) {
	k := Key{SessionID: sessionID, QuestionID: questionID}
	s := a.shardFor(k)
	s.mu.Lock()
	delete(s.bufs, k)
	s.mu.Unlock()
}

// Len returns the number of live buffers across all shards.
func (a *Assembler) Len() int {
	n := 0
	for _, s := range a.shards {
		s.mu.Lock()
		n += len(s.bufs)
		s.mu.Unlock()
	}
	return n
}
