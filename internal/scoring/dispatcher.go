package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/models"
	"github.com/aura-interview/backend/internal/realtime"
)

// ErrNoAnswer means the question has no candidate answer to grade yet.
var ErrNoAnswer = errors.New("no answer recorded for question")

const (
	summaryNoSpeech = "No speech detected"
	summaryNoCode   = "No code submitted"
)

// AnswerStore reads the inputs of a grading run.
type AnswerStore interface {
	GetQuestion(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Question, error)
	// LatestCandidateTranscript returns ok=false when the question has no candidate turn.
	LatestCandidateTranscript(ctx context.Context, sessionID uuid.UUID, questionID int64) (transcript string, ok bool, err error)
	// LatestCodeAnswer returns nil when no code was submitted.
	LatestCodeAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.CodeAnswer, error)
	AppendTimeline(ctx context.Context, ev *models.TimelineEvent) error
}

// ScoreStore persists scores and the derived report.
type ScoreStore interface {
	UpsertScore(ctx context.Context, s *models.Score) error
	ListScores(ctx context.Context, sessionID uuid.UUID) ([]models.Score, error)
	SaveReport(ctx context.Context, sessionID uuid.UUID, report models.Report) error
}

// Notifier pushes events toward the live connection, possibly in another process.
type Notifier interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event any) error
}

// Scorer grades one answer per call.
type Scorer struct {
	answers  AnswerStore
	scores   ScoreStore
	model    Model
	notifier Notifier
	weights  config.Weights
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewScorer creates a scorer. notifier may be nil.
func NewScorer(answers AnswerStore, scores ScoreStore, model Model, notifier Notifier, cfg config.ScoringConfig, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := cfg.Weights
	if w == (config.Weights{}) {
		w = config.DefaultWeights()
	}
	return &Scorer{
		answers:  answers,
		scores:   scores,
		model:    model,
		notifier: notifier,
		weights:  w,
		timeout:  cfg.Timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Weights returns the weight vector in use.
func (s *Scorer) Weights() config.Weights { return s.weights }

// Dispatch grades the latest answer for (sessionID, questionID), upserts the score and recomputes
// the session report. Repeating it converges on a single score row.
func (s *Scorer) Dispatch(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Score, error) {
	q, err := s.answers.GetQuestion(ctx, sessionID, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}

	var score *models.Score
	if q.IsCode() {
		score, err = s.gradeCode(ctx, q)
	} else {
		score, err = s.gradeVoice(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	if err := s.scores.UpsertScore(ctx, score); err != nil {
		s.timeline(ctx, sessionID, questionID, models.EventScoringFailed, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("upsert score: %w", err)
	}

	report, err := s.Recompute(ctx, sessionID)
	if err != nil {
		// the score row is durable; the report is re-derivable on the next run
		s.logger.Error("recompute report failed", zap.String("session_id", sessionID.String()), zap.Error(err))
	}

	s.timeline(ctx, sessionID, questionID, models.EventScoringCompleted, map[string]any{
		"technical":     score.Technical,
		"communication": score.Communication,
		"completeness":  score.Completeness,
		"overall":       score.Overall,
	})

	if s.notifier != nil {
		ev := realtime.ScoreReady{
			Type:          realtime.EventScoreReady,
			QuestionID:    questionID,
			Technical:     score.Technical,
			Communication: score.Communication,
			Completeness:  score.Completeness,
			Overall:       score.Overall,
			Summary:       score.Feedback.Summary,
		}
		if report != nil {
			overall := report.OverallScore
			ev.OverallScore = &overall
		}
		if err := s.notifier.Publish(ctx, sessionID, ev); err != nil {
			s.logger.Warn("publish score_ready failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		}
	}

	s.logger.Info("question scored",
		zap.String("session_id", sessionID.String()),
		zap.Int64("question_id", questionID),
		zap.Float64("overall", score.Overall),
	)
	return score, nil
}

// Recompute rebuilds the report from all stored scores and saves it on the session.
func (s *Scorer) Recompute(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	rows, err := s.scores.ListScores(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	report := Aggregate(rows, s.weights)
	if err := s.scores.SaveReport(ctx, sessionID, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return &report, nil
}

func (s *Scorer) gradeVoice(ctx context.Context, q *models.Question) (*models.Score, error) {
	transcript, ok, err := s.answers.LatestCandidateTranscript(ctx, q.SessionID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if !ok {
		return nil, ErrNoAnswer
	}

	var res Result
	var raw string
	if strings.TrimSpace(transcript) == "" {
		res = Result{RedFlags: []string{summaryNoSpeech}, Summary: summaryNoSpeech}
	} else {
		res, raw = Grade(ctx, s.model, VoicePrompt(q.Text, transcript), s.timeout, s.logger)
	}
	return s.newScore(q, res.Technical, res.Communication, res.Completeness, res, raw), nil
}

func (s *Scorer) gradeCode(ctx context.Context, q *models.Question) (*models.Score, error) {
	ans, err := s.answers.LatestCodeAnswer(ctx, q.SessionID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load code answer: %w", err)
	}
	if ans == nil {
		// answered through the text channel; treat the transcript as the code
		transcript, ok, err := s.answers.LatestCandidateTranscript(ctx, q.SessionID, q.ID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		if !ok {
			return nil, ErrNoAnswer
		}
		ans = &models.CodeAnswer{SessionID: q.SessionID, QuestionID: q.ID, Code: transcript}
	}

	if strings.TrimSpace(ans.Code) == "" {
		res := Result{RedFlags: []string{summaryNoCode}, Summary: summaryNoCode}
		return s.newScore(q, 0, 0, 0, res, ""), nil
	}

	corr := clamp(ans.Correctness)
	res, raw := Grade(ctx, s.model, CodePrompt(q.Text, ans.Code, ans.Output, corr), s.timeout, s.logger)

	tech := corr
	if res.HasTechnical() && res.Technical > tech {
		tech = res.Technical
	}
	comp := res.Completeness
	if !res.HasCompleteness() {
		comp = 0
		if corr > 0 {
			comp = NeutralScore
		}
	}
	return s.newScore(q, tech, 0, comp, res, raw), nil
}

func (s *Scorer) newScore(q *models.Question, tech, comm, comp int, res Result, raw string) *models.Score {
	flags := res.RedFlags
	if flags == nil {
		flags = []string{}
	}
	return &models.Score{
		SessionID:     q.SessionID,
		QuestionID:    q.ID,
		Modality:      q.Modality,
		Technical:     tech,
		Communication: comm,
		Completeness:  comp,
		Overall:       Overall(s.weights, tech, comm, comp),
		Feedback:      models.ScoreFeedback{Summary: res.Summary, RedFlags: flags},
		RawResponse:   raw,
		UpdatedAt:     s.now(),
	}
}

func (s *Scorer) timeline(ctx context.Context, sessionID uuid.UUID, questionID int64, typ string, payload any) {
	data, _ := json.Marshal(payload)
	qid := questionID
	ev := &models.TimelineEvent{
		SessionID:  sessionID,
		QuestionID: &qid,
		Type:       typ,
		Payload:    data,
		CreatedAt:  s.now(),
	}
	if err := s.answers.AppendTimeline(ctx, ev); err != nil {
		s.logger.Warn("append timeline failed", zap.String("type", typ), zap.Error(err))
	}
}
