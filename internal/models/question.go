package models

import (
	"time"

	"github.com/google/uuid"
)

// Question modalities.
const (
	ModalityVoice = "voice"
	ModalityCode  = "code"
)

// Question is one interview prompt. Immutable once created.
type Question struct {
	ID           int64     `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Text         string    `json:"text"`
	Modality     string    `json:"modality"`
	TimeLimitSec int       `json:"time_limit_sec"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsCode reports whether the question is answered with code.
func (q Question) IsCode() bool { return q.Modality == ModalityCode }
