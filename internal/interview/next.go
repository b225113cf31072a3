// Package interview drives one live interview session: greeting, question delivery, answer
// finalization and completion. Progress is derived from persisted turns, never from a cursor.
package interview

import (
	"sort"
	"time"

	"github.com/aura-interview/backend/internal/models"
)

// orderQuestions returns a copy of questions in creation order (CreatedAt, then ID).
func orderQuestions(questions []models.Question) []models.Question {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func answeredSet(turns []models.Turn) map[int64]bool {
	answered := make(map[int64]bool)
	for _, t := range turns {
		if t.Speaker == models.SpeakerCandidate && t.QuestionID != nil {
			answered[*t.QuestionID] = true
		}
	}
	return answered
}

// NextQuestion returns the first question in creation order that has no candidate turn, or nil
// when every question is answered.
func NextQuestion(questions []models.Question, turns []models.Turn) *models.Question {
	answered := answeredSet(turns)
	for _, q := range orderQuestions(questions) {
		if !answered[q.ID] {
			q := q
			return &q
		}
	}
	return nil
}

// Progress reports how many of questions have at least one candidate turn.
func Progress(questions []models.Question, turns []models.Turn) (answered, total int) {
	set := answeredSet(turns)
	for _, q := range questions {
		if set[q.ID] {
			answered++
		}
	}
	return answered, len(questions)
}

// askedTurn returns the agent turn that delivered questionID, if any.
func askedTurn(turns []models.Turn, questionID int64) (int64, bool) {
	for _, t := range turns {
		if t.Speaker == models.SpeakerAgent && t.QuestionID != nil && *t.QuestionID == questionID {
			return t.ID, true
		}
	}
	return 0, false
}

// askedAt returns when questionID was last delivered.
func askedAt(turns []models.Turn, questionID int64) (time.Time, bool) {
	var at time.Time
	found := false
	for _, t := range turns {
		if t.Speaker == models.SpeakerAgent && t.QuestionID != nil && *t.QuestionID == questionID {
			at, found = t.StartedAt, true
		}
	}
	return at, found
}

// greeted reports whether the session already has an agent turn.
func greeted(turns []models.Turn) bool {
	for _, t := range turns {
		if t.Speaker == models.SpeakerAgent {
			return true
		}
	}
	return false
}

func containsQuestion(questions []models.Question, questionID int64) (*models.Question, bool) {
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], true
		}
	}
	return nil, false
}
