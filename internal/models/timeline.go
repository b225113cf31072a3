package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Timeline event types.
const (
	EventGreeting              = "greeting"
	EventQuestionAsked         = "question_asked"
	EventAnswerFinalized       = "answer_finalized"
	EventScoringDispatched     = "scoring_dispatched"
	EventScoringDispatchFailed = "scoring_dispatch_failed"
	EventScoringCompleted      = "scoring_completed"
	EventScoringFailed         = "scoring_failed"
	EventInterrupt             = "ai_interrupt"
	EventInterviewCompleted    = "interview_completed"
)

// TimelineEvent is one entry of the session replay log.
type TimelineEvent struct {
	ID         int64           `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	QuestionID *int64          `json:"question_id,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"timestamp"`
}
