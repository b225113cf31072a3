package models

import (
	"time"

	"github.com/google/uuid"
)

// Score is the graded result for one question. At most one row per (session, question).
type Score struct {
	SessionID     uuid.UUID     `json:"session_id"`
	QuestionID    int64         `json:"question_id"`
	Modality      string        `json:"modality"`
	Technical     int           `json:"technical"`
	Communication int           `json:"communication"`
	Completeness  int           `json:"completeness"`
	Overall       float64       `json:"overall"`
	Feedback      ScoreFeedback `json:"feedback"`
	RawResponse   string        `json:"raw_response,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ScoreFeedback is the candidate-facing part of a score.
type ScoreFeedback struct {
	Summary  string   `json:"summary"`
	RedFlags []string `json:"red_flags"`
}

// Report is the session aggregate, derived from all Score rows.
type Report struct {
	Weights       ReportWeights     `json:"weights"`
	SectionScores SectionScores     `json:"section_scores"`
	OverallScore  float64           `json:"overall_score"`
	RedFlags      []string          `json:"red_flags"`
	PerQuestion   []QuestionSummary `json:"per_question"`
}

// ReportWeights echoes the weights used to compute the report.
type ReportWeights struct {
	Technical     float64 `json:"technical"`
	Communication float64 `json:"communication"`
	Completeness  float64 `json:"completeness"`
}

// SectionScores are the per-dimension averages.
type SectionScores struct {
	Technical     float64 `json:"technical"`
	Communication float64 `json:"communication"`
	Completeness  float64 `json:"completeness"`
}

// QuestionSummary is one entry in Report.PerQuestion.
type QuestionSummary struct {
	QuestionID    int64    `json:"question_id"`
	Modality      string   `json:"modality,omitempty"`
	Technical     int      `json:"technical"`
	Communication int      `json:"communication"`
	Completeness  int      `json:"completeness"`
	Overall       float64  `json:"overall"`
	Summary       string   `json:"summary"`
	RedFlags      []string `json:"red_flags"`
}
