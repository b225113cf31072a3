package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-interview/backend/internal/audio"
	"github.com/aura-interview/backend/internal/livesignal"
	"github.com/aura-interview/backend/internal/models"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/internal/speech"
	"github.com/aura-interview/backend/pkg/queue"
)

var (
	ErrSessionNotFound      = errors.New("interview not found")
	ErrSessionCompleted     = errors.New("interview already completed")
	ErrQuestionNotInSession = errors.New("question does not belong to this interview")
	ErrNotCodeQuestion      = errors.New("question is not a code question")
)

// Inbound control message types.
const (
	MessageCandidateText = "candidate_text"
	MessagePing          = "ping"
	MessageLiveText      = "live_text"
)

const (
	DefaultGreeting = "Hi, thanks for joining. I'll ask you a few questions; answer in your own words and take your time."
	DefaultClosing  = "That was the last question. Thank you for your time, the interview is complete."
)

// Store is the persistence the engine needs. Turns are append-only.
type Store interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error)
	ListTurns(ctx context.Context, sessionID uuid.UUID) ([]models.Turn, error)
	AppendTurn(ctx context.Context, t *models.Turn) error
	CompleteSession(ctx context.Context, sessionID uuid.UUID) error
	SaveCodeAnswer(ctx context.Context, a *models.CodeAnswer) error
	AppendTimeline(ctx context.Context, ev *models.TimelineEvent) error
	ListTimeline(ctx context.Context, sessionID uuid.UUID) ([]models.TimelineEvent, error)
}

// Scheduler hands an answer to the scoring pipeline and returns the job id.
type Scheduler interface {
	EnqueueScoring(ctx context.Context, payload queue.ScoringPayload) (string, error)
}

// AudioPublisher stores synthesized agent audio and returns a URL the client can fetch.
type AudioPublisher interface {
	PublishAgentAudio(ctx context.Context, sessionID uuid.UUID, turnID int64, audio []byte, contentType string) (string, error)
}

// Options tune engine behavior.
type Options struct {
	Greeting          string
	Closing           string
	RecognizeTimeout  time.Duration
	SynthesizeTimeout time.Duration
	// PartialRecognize re-recognizes the rolling buffer on partial chunks for live feedback.
	PartialRecognize bool
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if o.Closing == "" {
		o.Closing = DefaultClosing
	}
	if o.RecognizeTimeout <= 0 {
		o.RecognizeTimeout = 20 * time.Second
	}
	if o.SynthesizeTimeout <= 0 {
		o.SynthesizeTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Deps wires the engine's collaborators. Recognizer, Synthesizer and Audio are optional.
type Deps struct {
	Store       Store
	Scheduler   Scheduler
	Sender      realtime.Sender
	Assembler   *audio.Assembler
	Analyzer    *livesignal.Analyzer
	Policy      audio.FinalizePolicy
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer
	Audio       AudioPublisher
	Logger      *zap.Logger
}

// Engine is the turn state machine. All finalizations for one session run under that session's
// lock; everything else it touches is keyed per (session, question).
type Engine struct {
	store       Store
	scheduler   Scheduler
	sender      realtime.Sender
	assembler   *audio.Assembler
	analyzer    *livesignal.Analyzer
	policy      audio.FinalizePolicy
	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	audio       AudioPublisher
	opts        Options
	logger      *zap.Logger
	locks       *sessionLocks

	// questions caches each live session's questions; dropped on completion and on Release.
	qmu       sync.RWMutex
	questions map[uuid.UUID]map[int64]models.Question
}

// NewEngine creates an engine.
func NewEngine(d Deps, opts Options) *Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Policy == nil {
		d.Policy = audio.ClientSignaled{}
	}
	if d.Assembler == nil {
		d.Assembler = audio.NewAssembler(0)
	}
	return &Engine{
		store:       d.Store,
		scheduler:   d.Scheduler,
		sender:      d.Sender,
		assembler:   d.Assembler,
		analyzer:    d.Analyzer,
		policy:      d.Policy,
		recognizer:  d.Recognizer,
		synthesizer: d.Synthesizer,
		audio:       d.Audio,
		opts:        opts.withDefaults(),
		logger:      d.Logger,
		locks:       newSessionLocks(),
		questions:   make(map[uuid.UUID]map[int64]models.Question),
	}
}

// Start runs on connect: greet once, then deliver the pending question or close the interview.
func (e *Engine) Start(ctx context.Context, sessionID uuid.UUID) error {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Completed() {
		e.forget(sessionID)
		e.sender.Send(sessionID, realtime.NewClosingMessage(e.opts.Closing))
		return nil
	}

	questions, err := e.store.ListQuestions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	e.cacheQuestions(sessionID, questions)
	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}

	if !greeted(turns) {
		t := &models.Turn{
			SessionID:  sessionID,
			Speaker:    models.SpeakerAgent,
			Transcript: e.opts.Greeting,
			StartedAt:  e.opts.Now(),
			EndedAt:    e.opts.Now(),
		}
		if err := e.store.AppendTurn(ctx, t); err != nil {
			return fmt.Errorf("append greeting: %w", err)
		}
		turns = append(turns, *t)
		e.timeline(ctx, sessionID, nil, models.EventGreeting, nil)
		e.sender.Send(sessionID, realtime.NewAgentMessage(0, e.opts.Greeting, e.speak(ctx, sessionID, t.ID, e.opts.Greeting)))
	}
	return e.advance(ctx, sessionID, questions, turns)
}

// advance delivers the next unanswered question or completes the session. Caller holds the
// session lock.
func (e *Engine) advance(ctx context.Context, sessionID uuid.UUID, questions []models.Question, turns []models.Turn) error {
	next := NextQuestion(questions, turns)
	if next == nil {
		return e.complete(ctx, sessionID)
	}

	if turnID, ok := askedTurn(turns, next.ID); ok {
		// resume: re-emit without a second agent turn
		e.sender.Send(sessionID, realtime.NewAgentMessage(next.ID, next.Text, e.speak(ctx, sessionID, turnID, next.Text)))
		return nil
	}

	qid := next.ID
	t := &models.Turn{
		SessionID:  sessionID,
		Speaker:    models.SpeakerAgent,
		QuestionID: &qid,
		Transcript: next.Text,
		StartedAt:  e.opts.Now(),
		EndedAt:    e.opts.Now(),
	}
	if err := e.store.AppendTurn(ctx, t); err != nil {
		return fmt.Errorf("append question turn: %w", err)
	}
	e.timeline(ctx, sessionID, &qid, models.EventQuestionAsked, map[string]any{
		"turn_id":  t.ID,
		"modality": next.Modality,
	})
	e.sender.Send(sessionID, realtime.NewAgentMessage(next.ID, next.Text, e.speak(ctx, sessionID, t.ID, next.Text)))
	return nil
}

func (e *Engine) complete(ctx context.Context, sessionID uuid.UUID) error {
	if err := e.store.CompleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	e.forget(sessionID)
	e.timeline(ctx, sessionID, nil, models.EventInterviewCompleted, nil)
	e.sender.Send(sessionID, realtime.NewClosingMessage(e.opts.Closing))
	e.logger.Info("interview completed", zap.String("session_id", sessionID.String()))
	return nil
}

type inbound struct {
	Type       string `json:"type"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

// HandleMessage processes one inbound control message. Failures are reported to the client as
// error events; the connection always stays open.
func (e *Engine) HandleMessage(ctx context.Context, sessionID uuid.UUID, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		e.sender.Send(sessionID, realtime.NewError("invalid message"))
		return
	}

	var err error
	switch msg.Type {
	case MessagePing:
		e.sender.Send(sessionID, realtime.Pong{Type: realtime.EventPong})
	case MessageCandidateText:
		err = e.FinalizeAnswer(ctx, sessionID, msg.QuestionID, msg.Text)
	case MessageLiveText:
		err = e.LiveText(ctx, sessionID, msg.QuestionID, msg.Text)
	default:
		e.sender.Send(sessionID, realtime.NewError("unknown message type: "+msg.Type))
		return
	}
	if err != nil {
		e.reportError(sessionID, msg.Type, err)
	}
}

func (e *Engine) reportError(sessionID uuid.UUID, msgType string, err error) {
	switch {
	case errors.Is(err, ErrQuestionNotInSession), errors.Is(err, ErrSessionCompleted),
		errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotCodeQuestion):
		e.sender.Send(sessionID, realtime.NewError(err.Error()))
	default:
		e.logger.Error("handle message failed",
			zap.String("session_id", sessionID.String()),
			zap.String("type", msgType),
			zap.Error(err),
		)
		e.sender.Send(sessionID, realtime.NewError("failed to process "+msgType))
	}
}

// FinalizeAnswer commits a candidate answer and moves the interview forward: persist the turn,
// hand it to scoring, then deliver the next question or complete.
func (e *Engine) FinalizeAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64, transcript string) error {
	return e.finalize(ctx, sessionID, questionID, transcript, nil)
}

// finalize runs under the session lock. beforeCommit, when set, runs after the session and question
// checks pass and before the answer turn is appended; its error aborts the finalize. Once the turn
// is committed the rest runs to the end even if the caller goes away.
func (e *Engine) finalize(ctx context.Context, sessionID uuid.UUID, questionID int64, transcript string, beforeCommit func(*models.Question) error) error {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Completed() {
		e.forget(sessionID)
		return ErrSessionCompleted
	}
	questions, err := e.store.ListQuestions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	e.cacheQuestions(sessionID, questions)
	q, ok := containsQuestion(questions, questionID)
	if !ok {
		return ErrQuestionNotInSession
	}
	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}
	if beforeCommit != nil {
		if err := beforeCommit(q); err != nil {
			return err
		}
	}

	now := e.opts.Now()
	started := now
	if at, ok := askedAt(turns, questionID); ok {
		started = at
	}
	qid := questionID
	t := &models.Turn{
		SessionID:  sessionID,
		Speaker:    models.SpeakerCandidate,
		QuestionID: &qid,
		Transcript: transcript,
		StartedAt:  started,
		EndedAt:    now,
	}
	if err := e.store.AppendTurn(ctx, t); err != nil {
		return fmt.Errorf("append answer turn: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	e.clearLive(sessionID, questionID)
	e.timeline(ctx, sessionID, &qid, models.EventAnswerFinalized, map[string]any{
		"turn_id":    t.ID,
		"empty":      transcript == "",
		"duration_s": now.Sub(started).Seconds(),
	})
	e.dispatch(ctx, sessionID, questionID, t.ID)

	turns, err = e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}
	return e.advance(ctx, sessionID, questions, turns)
}

// dispatch enqueues scoring. A queue failure is recorded but never blocks the interview.
func (e *Engine) dispatch(ctx context.Context, sessionID uuid.UUID, questionID, turnID int64) {
	qid := questionID
	taskID, err := e.scheduler.EnqueueScoring(ctx, queue.ScoringPayload{
		SessionID:  sessionID,
		QuestionID: questionID,
		TurnID:     turnID,
	})
	if err != nil {
		e.logger.Error("enqueue scoring failed",
			zap.String("session_id", sessionID.String()),
			zap.Int64("question_id", questionID),
			zap.Error(err),
		)
		e.timeline(ctx, sessionID, &qid, models.EventScoringDispatchFailed, map[string]any{"error": err.Error()})
		return
	}
	e.timeline(ctx, sessionID, &qid, models.EventScoringDispatched, map[string]any{"task_id": taskID, "turn_id": turnID})
	e.sender.Send(sessionID, realtime.NewScoringStarted(turnID, questionID, taskID))
}

func (e *Engine) clearLive(sessionID uuid.UUID, questionID int64) {
	if e.analyzer != nil {
		e.analyzer.Clear(sessionID, questionID)
	}
	e.assembler.Drop(sessionID, questionID)
	e.policy.Reset(sessionID, questionID)
}

// LiveText feeds an incremental transcript fragment to the live signal analyzer.
func (e *Engine) LiveText(ctx context.Context, sessionID uuid.UUID, questionID int64, fragment string) error {
	q, err := e.question(ctx, sessionID, questionID)
	if err != nil {
		return err
	}
	if e.analyzer == nil {
		return nil
	}
	e.emitSignal(ctx, sessionID, e.analyzer.Observe(sessionID, questionID, fragment, q.Text))
	return nil
}

func (e *Engine) emitSignal(ctx context.Context, sessionID uuid.UUID, sig livesignal.Signal) {
	e.sender.Send(sessionID, realtime.LiveSignal{
		Type:        realtime.EventLiveSignal,
		QuestionID:  sig.QuestionID,
		Confidence:  string(sig.Confidence),
		WordCount:   sig.WordCount,
		FillerCount: sig.FillerCount,
		Drift:       sig.Drift,
	})
	if !sig.Interrupt {
		return
	}
	e.sender.Send(sessionID, realtime.AIInterrupt{
		Type:       realtime.EventAIInterrupt,
		QuestionID: sig.QuestionID,
		Text:       sig.SuggestedFollowup,
		Reason:     sig.Reason,
	})
	qid := sig.QuestionID
	e.timeline(ctx, sessionID, &qid, models.EventInterrupt, map[string]any{
		"reason":     sig.Reason,
		"word_count": sig.WordCount,
		"followup":   sig.SuggestedFollowup,
	})
}

// AudioResult is the response to one audio chunk.
type AudioResult struct {
	Partial    bool    `json:"partial"`
	QuestionID int64   `json:"question_id"`
	Transcript *string `json:"transcript,omitempty"`
}

// IngestAudio buffers an answer chunk. When the finalize policy fires, the buffer is taken,
// recognized and finalized as the answer; a recognition failure yields an empty transcript.
func (e *Engine) IngestAudio(ctx context.Context, sessionID uuid.UUID, questionID int64, chunk []byte, partial bool) (AudioResult, error) {
	q, err := e.question(ctx, sessionID, questionID)
	if err != nil {
		return AudioResult{}, err
	}
	e.assembler.Append(sessionID, questionID, chunk)

	if !e.policy.ShouldFinalize(sessionID, questionID, chunk, partial) {
		res := AudioResult{Partial: true, QuestionID: questionID}
		if e.opts.PartialRecognize {
			text := e.recognize(ctx, sessionID, e.assembler.Peek(sessionID, questionID))
			if text != "" {
				res.Transcript = &text
				if e.analyzer != nil {
					e.emitSignal(ctx, sessionID, e.analyzer.ObserveTranscript(sessionID, questionID, text, q.Text))
				}
			}
		}
		return res, nil
	}

	buf := e.assembler.Take(sessionID, questionID)
	e.policy.Reset(sessionID, questionID)
	text := e.recognize(ctx, sessionID, buf)
	if err := e.FinalizeAnswer(ctx, sessionID, questionID, text); err != nil {
		return AudioResult{}, err
	}
	return AudioResult{Partial: false, QuestionID: questionID, Transcript: &text}, nil
}

func (e *Engine) recognize(ctx context.Context, sessionID uuid.UUID, buf []byte) string {
	if e.recognizer == nil || len(buf) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.RecognizeTimeout)
	defer cancel()
	text, err := e.recognizer.Recognize(ctx, buf)
	if errors.Is(err, speech.ErrDisabled) {
		return ""
	}
	if err != nil {
		e.logger.Warn("recognition failed, using empty transcript",
			zap.String("session_id", sessionID.String()),
			zap.Int("bytes", len(buf)),
			zap.Error(err),
		)
		return ""
	}
	return text
}

// CodeSubmission is a candidate's code answer with runner output.
type CodeSubmission struct {
	QuestionID  int64  `json:"question_id" binding:"required"`
	Code        string `json:"code"`
	Output      string `json:"output"`
	Correctness int    `json:"correctness" binding:"min=0,max=100"`
}

// SubmitCode stores the code answer and finalizes the question with the code as its transcript.
// Nothing is stored when the finalize would be rejected.
func (e *Engine) SubmitCode(ctx context.Context, sessionID uuid.UUID, sub CodeSubmission) error {
	return e.finalize(ctx, sessionID, sub.QuestionID, sub.Code, func(q *models.Question) error {
		if !q.IsCode() {
			return ErrNotCodeQuestion
		}
		a := &models.CodeAnswer{
			SessionID:   sessionID,
			QuestionID:  sub.QuestionID,
			Code:        sub.Code,
			Output:      sub.Output,
			Correctness: sub.Correctness,
			CreatedAt:   e.opts.Now(),
		}
		if err := e.store.SaveCodeAnswer(ctx, a); err != nil {
			return fmt.Errorf("save code answer: %w", err)
		}
		return nil
	})
}

// Rescore re-enqueues scoring for an answered question. Scores converge on one row per question.
func (e *Engine) Rescore(ctx context.Context, sessionID uuid.UUID, questionID int64) (string, error) {
	if _, err := e.question(ctx, sessionID, questionID); err != nil {
		return "", err
	}
	taskID, err := e.scheduler.EnqueueScoring(ctx, queue.ScoringPayload{SessionID: sessionID, QuestionID: questionID})
	if err != nil {
		return "", fmt.Errorf("enqueue scoring: %w", err)
	}
	qid := questionID
	e.timeline(ctx, sessionID, &qid, models.EventScoringDispatched, map[string]any{"task_id": taskID, "rescore": true})
	return taskID, nil
}

// Summary is the reviewer view of a session.
type Summary struct {
	SessionID    uuid.UUID       `json:"session_id"`
	Status       string          `json:"status"`
	Answered     int             `json:"answered"`
	Total        int             `json:"total"`
	OverallScore *float64        `json:"overall_score,omitempty"`
	Report       json.RawMessage `json:"report,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Summarize returns status, progress and the stored report.
func (e *Engine) Summarize(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := e.store.ListQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	answered, total := Progress(questions, turns)
	return &Summary{
		SessionID:    sess.ID,
		Status:       sess.Status,
		Answered:     answered,
		Total:        total,
		OverallScore: sess.OverallScore,
		Report:       sess.Report,
		CompletedAt:  sess.CompletedAt,
	}, nil
}

// Replay returns the session timeline in order.
func (e *Engine) Replay(ctx context.Context, sessionID uuid.UUID) ([]models.TimelineEvent, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.ListTimeline(ctx, sessionID)
}

// question resolves a question of the session, from cache when possible. Misses read the store
// without caching; only Start and finalize populate the cache.
func (e *Engine) question(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Question, error) {
	e.qmu.RLock()
	q, ok := e.questions[sessionID][questionID]
	e.qmu.RUnlock()
	if ok {
		return &q, nil
	}

	questions, err := e.store.ListQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	found, ok := containsQuestion(questions, questionID)
	if !ok {
		return nil, ErrQuestionNotInSession
	}
	return found, nil
}

func (e *Engine) cacheQuestions(sessionID uuid.UUID, questions []models.Question) {
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	e.qmu.Lock()
	e.questions[sessionID] = byID
	e.qmu.Unlock()
}

func (e *Engine) forget(sessionID uuid.UUID) {
	e.qmu.Lock()
	delete(e.questions, sessionID)
	e.qmu.Unlock()
}

// Release drops cached state for a session whose connection closed. Audio or code arriving later
// reloads it from the store.
func (e *Engine) Release(sessionID uuid.UUID) {
	e.forget(sessionID)
}

func (e *Engine) cachedSessions() int {
	e.qmu.RLock()
	defer e.qmu.RUnlock()
	return len(e.questions)
}

// speak synthesizes text and publishes it for the client. Any failure degrades to no audio.
func (e *Engine) speak(ctx context.Context, sessionID uuid.UUID, turnID int64, text string) string {
	if e.synthesizer == nil || e.audio == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.SynthesizeTimeout)
	defer cancel()
	data, contentType, err := e.synthesizer.Synthesize(ctx, text)
	if err != nil {
		if !errors.Is(err, speech.ErrDisabled) {
			e.logger.Warn("synthesize failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		return ""
	}
	url, err := e.audio.PublishAgentAudio(ctx, sessionID, turnID, data, contentType)
	if err != nil {
		e.logger.Warn("publish agent audio failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return ""
	}
	return url
}

func (e *Engine) timeline(ctx context.Context, sessionID uuid.UUID, questionID *int64, typ string, payload any) {
	ev := &models.TimelineEvent{
		SessionID:  sessionID,
		QuestionID: questionID,
		Type:       typ,
		CreatedAt:  e.opts.Now(),
	}
	if payload != nil {
		ev.Payload, _ = json.Marshal(payload)
	}
	if err := e.store.AppendTimeline(ctx, ev); err != nil {
		e.logger.Warn("append timeline failed",
			zap.String("session_id", sessionID.String()),
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}
