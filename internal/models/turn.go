package models

import (
	"time"

	"github.com/google/uuid"
)

// Turn speakers.
const (
	SpeakerAgent     = "agent"
	SpeakerCandidate = "candidate"
)

// Turn is one utterance in the append-only session log.
type Turn struct {
	ID         int64     `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Speaker    string    `json:"speaker"`
	QuestionID *int64    `json:"question_id,omitempty"`
	Transcript string    `json:"transcript"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// Answers reports whether the turn is a candidate answer to questionID.
func (t Turn) Answers(questionID int64) bool {
	return t.Speaker == SpeakerCandidate && t.QuestionID != nil && *t.QuestionID == questionID
}

// CodeAnswer is the latest submitted code for a code question, with runner output.
type CodeAnswer struct {
	ID          int64     `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	QuestionID  int64     `json:"question_id"`
	Code        string    `json:"code"`
	Output      string    `json:"output"`
	Correctness int       `json:"correctness"`
	CreatedAt   time.Time `json:"created_at"`
}
