package scoring

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/models"
)

func sampleScores(sid uuid.UUID) []models.Score {
	w := config.DefaultWeights()
	return []models.Score{
		{
			SessionID: sid, QuestionID: 7, Modality: models.ModalityCode,
			Technical: 90, Communication: 0, Completeness: 80, Overall: Overall(w, 90, 0, 80),
			Feedback: models.ScoreFeedback{Summary: "solid", RedFlags: []string{"no tests"}},
		},
		{
			SessionID: sid, QuestionID: 3, Modality: models.ModalityVoice,
			Technical: 60, Communication: 70, Completeness: 50, Overall: Overall(w, 60, 70, 50),
			Feedback: models.ScoreFeedback{Summary: "ok", RedFlags: []string{"vague", "no tests"}},
		},
	}
}

func TestAggregate(t *testing.T) {
	sid := uuid.New()
	r := Aggregate(sampleScores(sid), config.DefaultWeights())

	if len(r.PerQuestion) != 2 || r.PerQuestion[0].QuestionID != 3 || r.PerQuestion[1].QuestionID != 7 {
		t.Fatalf("per-question order wrong: %+v", r.PerQuestion)
	}
	want := models.SectionScores{Technical: 75, Communication: 35, Completeness: 65}
	if r.SectionScores != want {
		t.Fatalf("sections = %+v, want %+v", r.SectionScores, want)
	}
	// 0.6*75 + 0.3*35 + 0.1*65
	if r.OverallScore != 62 {
		t.Fatalf("overall = %v, want 62", r.OverallScore)
	}
	if !reflect.DeepEqual(r.RedFlags, []string{"vague", "no tests"}) {
		t.Fatalf("red flags = %v", r.RedFlags)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	sid := uuid.New()
	rows := sampleScores(sid)
	first := Aggregate(rows, config.DefaultWeights())
	second := Aggregate(rows, config.DefaultWeights())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregate not idempotent:\n%+v\n%+v", first, second)
	}
	if rows[0].QuestionID != 7 {
		t.Fatalf("aggregate reordered caller's rows")
	}
}

func TestAggregateCodeRowsContributeNoCommunication(t *testing.T) {
	rows := []models.Score{{QuestionID: 1, Modality: models.ModalityCode, Technical: 100, Communication: 90, Completeness: 100}}
	r := Aggregate(rows, config.DefaultWeights())
	if r.SectionScores.Communication != 0 {
		t.Fatalf("communication = %v, want 0", r.SectionScores.Communication)
	}
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil, config.DefaultWeights())
	if r.OverallScore != 0 || len(r.PerQuestion) != 0 || r.RedFlags == nil || r.PerQuestion == nil {
		t.Fatalf("unexpected empty report: %+v", r)
	}
}

func TestOverall(t *testing.T) {
	if got := Overall(config.DefaultWeights(), 85, 70, 60); got != 78 {
		t.Fatalf("overall = %v, want 78", got)
	}
	if got := Overall(config.DefaultWeights(), 33, 33, 33); got != 33 {
		t.Fatalf("overall = %v, want 33", got)
	}
}
