package interview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-interview/backend/internal/models"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/pkg/queue"
)

// memStore backs both the engine and the scorer in tests.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	sessions  map[uuid.UUID]*models.Session
	questions []models.Question
	turns     []models.Turn
	codes     []models.CodeAnswer
	timeline  []models.TimelineEvent
	scores    map[int64]models.Score
	// afterAppend runs once a turn is stored.
	afterAppend func(models.Turn)
}

func newMemStore() *memStore {
	return &memStore{sessions: map[uuid.UUID]*models.Session{}, scores: map[int64]models.Score{}}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// addSession creates a recording session with one question per modality, in order.
func (m *memStore) addSession(modalities ...string) (uuid.UUID, []models.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid := uuid.New()
	m.sessions[sid] = &models.Session{ID: sid, Status: models.SessionRecording, CreatedAt: time.Now()}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var qs []models.Question
	for i, mod := range modalities {
		q := models.Question{
			ID:        m.id(),
			SessionID: sid,
			Text:      "Explain how a hash map works",
			Modality:  mod,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		m.questions = append(m.questions, q)
		qs = append(qs, q)
	}
	return sid, qs
}

func (m *memStore) GetSession(_ context.Context, sid uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListQuestions(_ context.Context, sid uuid.UUID) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Question
	for _, q := range m.questions {
		if q.SessionID == sid {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memStore) GetQuestion(ctx context.Context, sid uuid.UUID, qid int64) (*models.Question, error) {
	qs, _ := m.ListQuestions(ctx, sid)
	if q, ok := containsQuestion(qs, qid); ok {
		return q, nil
	}
	return nil, ErrQuestionNotInSession
}

func (m *memStore) ListTurns(_ context.Context, sid uuid.UUID) ([]models.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Turn
	for _, t := range m.turns {
		if t.SessionID == sid {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) AppendTurn(ctx context.Context, t *models.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	t.ID = m.id()
	m.turns = append(m.turns, *t)
	hook := m.afterAppend
	m.mu.Unlock()
	if hook != nil {
		hook(*t)
	}
	return nil
}

func (m *memStore) CompleteSession(_ context.Context, sid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return ErrSessionNotFound
	}
	now := time.Now()
	s.Status = models.SessionCompleted
	s.CompletedAt = &now
	return nil
}

func (m *memStore) SaveCodeAnswer(_ context.Context, a *models.CodeAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.codes = append(m.codes, *a)
	return nil
}

func (m *memStore) LatestCodeAnswer(_ context.Context, sid uuid.UUID, qid int64) (*models.CodeAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if a := m.codes[i]; a.SessionID == sid && a.QuestionID == qid {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) LatestCandidateTranscript(_ context.Context, sid uuid.UUID, qid int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.turns) - 1; i >= 0; i-- {
		if t := m.turns[i]; t.SessionID == sid && t.Answers(qid) {
			return t.Transcript, true, nil
		}
	}
	return "", false, nil
}

func (m *memStore) AppendTimeline(_ context.Context, ev *models.TimelineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.id()
	m.timeline = append(m.timeline, *ev)
	return nil
}

func (m *memStore) ListTimeline(_ context.Context, sid uuid.UUID) ([]models.TimelineEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.TimelineEvent{}
	for _, ev := range m.timeline {
		if ev.SessionID == sid {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) UpsertScore(_ context.Context, s *models.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[s.QuestionID] = *s
	return nil
}

func (m *memStore) ListScores(_ context.Context, sid uuid.UUID) ([]models.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Score
	for _, s := range m.scores {
		if s.SessionID == sid {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) SaveReport(_ context.Context, sid uuid.UUID, r models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return ErrSessionNotFound
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	overall := r.OverallScore
	s.OverallScore = &overall
	s.Report = data
	return nil
}

func (m *memStore) countTurns(sid uuid.UUID, speaker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.turns {
		if t.SessionID == sid && t.Speaker == speaker {
			n++
		}
	}
	return n
}

func (m *memStore) timelineTypes(sid uuid.UUID) []string {
	evs, _ := m.ListTimeline(context.Background(), sid)
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

type memScheduler struct {
	mu   sync.Mutex
	jobs []queue.ScoringPayload
	fail bool
}

func (s *memScheduler) EnqueueScoring(ctx context.Context, p queue.ScoringPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("redis unavailable")
	}
	s.jobs = append(s.jobs, p)
	return uuid.NewString(), nil
}

func (s *memScheduler) drain() []queue.ScoringPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.jobs
	s.jobs = nil
	return jobs
}

// recordingSender captures outbound events per session.
type recordingSender struct {
	mu     sync.Mutex
	events map[uuid.UUID][]any
}

func newRecordingSender() *recordingSender {
	return &recordingSender{events: map[uuid.UUID][]any{}}
}

func (s *recordingSender) Send(sid uuid.UUID, ev any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sid] = append(s.events[sid], ev)
}

func (s *recordingSender) take(sid uuid.UUID) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events[sid]
	delete(s.events, sid)
	return evs
}

func eventType(ev any) string {
	switch e := ev.(type) {
	case realtime.AgentMessage:
		return e.Type
	case realtime.ScoringStarted:
		return e.Type
	case realtime.LiveSignal:
		return e.Type
	case realtime.AIInterrupt:
		return e.Type
	case realtime.Pong:
		return e.Type
	case realtime.Error:
		return e.Type
	default:
		return "?"
	}
}

func eventTypes(evs []any) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = eventType(ev)
	}
	return out
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, []byte) (string, error) {
	return "", errors.New("malformed audio")
}

type fixedRecognizer struct{ text string }

func (r fixedRecognizer) Recognize(context.Context, []byte) (string, error) { return r.text, nil }
