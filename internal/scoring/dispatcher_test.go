package scoring

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/models"
)

type scoreKey struct {
	sid uuid.UUID
	qid int64
}

type fakeAnswers struct {
	questions   map[int64]*models.Question
	transcripts map[int64]string
	code        map[int64]*models.CodeAnswer
	events      []models.TimelineEvent
}

func (f *fakeAnswers) GetQuestion(_ context.Context, sid uuid.UUID, qid int64) (*models.Question, error) {
	q, ok := f.questions[qid]
	if !ok || q.SessionID != sid {
		return nil, errors.New("question not found")
	}
	return q, nil
}

func (f *fakeAnswers) LatestCandidateTranscript(_ context.Context, _ uuid.UUID, qid int64) (string, bool, error) {
	t, ok := f.transcripts[qid]
	return t, ok, nil
}

func (f *fakeAnswers) LatestCodeAnswer(_ context.Context, _ uuid.UUID, qid int64) (*models.CodeAnswer, error) {
	return f.code[qid], nil
}

func (f *fakeAnswers) AppendTimeline(_ context.Context, ev *models.TimelineEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

type fakeScores struct {
	mu        sync.Mutex
	rows      map[scoreKey]models.Score
	report    *models.Report
	failWrite error
}

func newFakeScores() *fakeScores {
	return &fakeScores{rows: make(map[scoreKey]models.Score)}
}

func (f *fakeScores) UpsertScore(_ context.Context, s *models.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.rows[scoreKey{s.SessionID, s.QuestionID}] = *s
	return nil
}

func (f *fakeScores) ListScores(_ context.Context, sid uuid.UUID) ([]models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Score
	for k, s := range f.rows {
		if k.sid == sid {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScores) SaveReport(_ context.Context, _ uuid.UUID, r models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.report = &r
	return nil
}

type fakeModel struct {
	mu     sync.Mutex
	out    string
	err    error
	block  bool
	calls  int
	prompt string
}

func (m *fakeModel) Generate(ctx context.Context, prompt string) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.prompt = prompt
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.out), nil
}

type fakeNotifier struct {
	events []any
}

func (n *fakeNotifier) Publish(_ context.Context, _ uuid.UUID, ev any) error {
	n.events = append(n.events, ev)
	return nil
}

func newFixture(modality string) (uuid.UUID, *fakeAnswers, *fakeScores) {
	sid := uuid.New()
	answers := &fakeAnswers{
		questions: map[int64]*models.Question{
			1: {ID: 1, SessionID: sid, Text: "Explain how a hash map works", Modality: modality},
		},
		transcripts: map[int64]string{},
		code:        map[int64]*models.CodeAnswer{},
	}
	return sid, answers, newFakeScores()
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{Weights: config.DefaultWeights(), Timeout: time.Second}
}

func TestDispatch_RescoringKeepsOneRow(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityVoice)
	answers.transcripts[1] = "buckets and hashing"
	model := &fakeModel{out: `{"technical":80,"communication":60,"completeness":40,"summary":"first"}`}
	s := NewScorer(answers, scores, model, nil, testScoringConfig(), nil)

	for i := 0; i < 5; i++ {
		if i == 4 {
			model.out = `{"technical":10,"communication":20,"completeness":30,"summary":"last"}`
		}
		if _, err := s.Dispatch(context.Background(), sid, 1); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	rows, _ := scores.ListScores(context.Background(), sid)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Technical != 10 || rows[0].Feedback.Summary != "last" {
		t.Fatalf("row does not reflect last write: %+v", rows[0])
	}
	if scores.report == nil || len(scores.report.PerQuestion) != 1 {
		t.Fatalf("report not recomputed: %+v", scores.report)
	}
}

func TestDispatch_EmptyTranscriptSkipsModel(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityVoice)
	answers.transcripts[1] = "  "
	model := &fakeModel{out: `{"technical":99}`}
	notifier := &fakeNotifier{}
	s := NewScorer(answers, scores, model, notifier, testScoringConfig(), nil)

	got, err := s.Dispatch(context.Background(), sid, 1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model called %d times for empty transcript", model.calls)
	}
	if got.Technical != 0 || got.Communication != 0 || got.Completeness != 0 {
		t.Fatalf("scores = %d/%d/%d, want zeros", got.Technical, got.Communication, got.Completeness)
	}
	if !strings.Contains(strings.ToLower(got.Feedback.Summary), "no speech detected") {
		t.Fatalf("summary = %q", got.Feedback.Summary)
	}
	if len(got.Feedback.RedFlags) != 1 {
		t.Fatalf("red flags = %v", got.Feedback.RedFlags)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("notifier events = %d, want 1", len(notifier.events))
	}
}

func TestDispatch_NoAnswer(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityVoice)
	s := NewScorer(answers, scores, &fakeModel{}, nil, testScoringConfig(), nil)
	if _, err := s.Dispatch(context.Background(), sid, 1); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("err = %v, want ErrNoAnswer", err)
	}
}

func TestDispatch_ModelTimeoutGivesNeutralDefault(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityVoice)
	answers.transcripts[1] = "an answer"
	cfg := testScoringConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := NewScorer(answers, scores, &fakeModel{block: true}, nil, cfg, nil)

	got, err := s.Dispatch(context.Background(), sid, 1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.Technical != NeutralScore || got.Communication != NeutralScore || got.Completeness != NeutralScore {
		t.Fatalf("scores = %d/%d/%d, want neutral", got.Technical, got.Communication, got.Completeness)
	}
	if got.Feedback.Summary == "" {
		t.Fatalf("expected explanatory summary")
	}
}

func TestDispatch_CodeUsesCorrectnessFloor(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityCode)
	answers.code[1] = &models.CodeAnswer{SessionID: sid, QuestionID: 1, Code: "def f(): return 1", Output: strings.Repeat("x", 5000), Correctness: 70}
	model := &fakeModel{out: `{"technical":40,"communication":90,"summary":"meh"}`}
	s := NewScorer(answers, scores, model, nil, testScoringConfig(), nil)

	got, err := s.Dispatch(context.Background(), sid, 1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.Technical != 70 {
		t.Fatalf("technical = %d, want correctness floor 70", got.Technical)
	}
	if got.Communication != 0 {
		t.Fatalf("communication = %d, want 0 for code", got.Communication)
	}
	if got.Completeness != NeutralScore {
		t.Fatalf("completeness = %d, want %d when model omits it", got.Completeness, NeutralScore)
	}
	if strings.Count(model.prompt, "x") > maxOutputChars+10 {
		t.Fatalf("program output not truncated in prompt")
	}
}

func TestDispatch_UpsertFailureRecordsTimelineAndErrors(t *testing.T) {
	sid, answers, scores := newFixture(models.ModalityVoice)
	answers.transcripts[1] = "an answer"
	scores.failWrite = errors.New("db down")
	s := NewScorer(answers, scores, &fakeModel{out: `{"technical":1}`}, nil, testScoringConfig(), nil)

	if _, err := s.Dispatch(context.Background(), sid, 1); err == nil {
		t.Fatalf("expected error on upsert failure")
	}
	if len(answers.events) != 1 || answers.events[0].Type != models.EventScoringFailed {
		t.Fatalf("timeline = %+v, want one scoring_failed event", answers.events)
	}
}
