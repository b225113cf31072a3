package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	SessionRecording = "recording"
	SessionCompleted = "completed"
)

// Session is one end-to-end interview attempt.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	Status       string          `json:"status"`
	OverallScore *float64        `json:"overall_score,omitempty"`
	Report       json.RawMessage `json:"report,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Completed reports whether the session reached its terminal state.
func (s Session) Completed() bool { return s.Status == SessionCompleted }
