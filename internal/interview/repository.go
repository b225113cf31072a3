package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-interview/backend/internal/models"
)

// Repository handles session, question, turn, code answer and timeline persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an interview repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSession returns a session by ID.
func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	const query = `SELECT id, status, overall_score, report, created_at, completed_at
		FROM sessions WHERE id = $1`
	var s models.Session
	var report []byte
	err := r.pool.QueryRow(ctx, query, sessionID).
		Scan(&s.ID, &s.Status, &s.OverallScore, &report, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Report = report
	return &s, nil
}

// CompleteSession marks a session completed. Completing twice keeps the first timestamp.
func (r *Repository) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	const query = `UPDATE sessions SET status = $2, completed_at = COALESCE(completed_at, NOW())
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, sessionID, models.SessionCompleted)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListQuestions returns the session's questions in creation order.
func (r *Repository) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	const query = `SELECT id, session_id, text, modality, time_limit_sec, created_at
		FROM questions WHERE session_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Modality, &q.TimeLimitSec, &q.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// GetQuestion returns a question only if it belongs to the session.
func (r *Repository) GetQuestion(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Question, error) {
	const query = `SELECT id, session_id, text, modality, time_limit_sec, created_at
		FROM questions WHERE id = $1 AND session_id = $2`
	var q models.Question
	err := r.pool.QueryRow(ctx, query, questionID, sessionID).
		Scan(&q.ID, &q.SessionID, &q.Text, &q.Modality, &q.TimeLimitSec, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotInSession
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return &q, nil
}

// ListTurns returns all turns of a session in insertion order.
func (r *Repository) ListTurns(ctx context.Context, sessionID uuid.UUID) ([]models.Turn, error) {
	const query = `SELECT id, session_id, speaker, question_id, transcript, started_at, ended_at
		FROM turns WHERE session_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()
	var list []models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Speaker, &t.QuestionID, &t.Transcript, &t.StartedAt, &t.EndedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// AppendTurn inserts a turn and fills its ID.
func (r *Repository) AppendTurn(ctx context.Context, t *models.Turn) error {
	const query = `INSERT INTO turns (session_id, speaker, question_id, transcript, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.pool.QueryRow(ctx, query, t.SessionID, t.Speaker, t.QuestionID, t.Transcript, t.StartedAt, t.EndedAt).
		Scan(&t.ID)
}

// LatestCandidateTranscript returns the newest candidate answer for a question. ok is false when
// the question has never been answered.
func (r *Repository) LatestCandidateTranscript(ctx context.Context, sessionID uuid.UUID, questionID int64) (string, bool, error) {
	const query = `SELECT transcript FROM turns
		WHERE session_id = $1 AND question_id = $2 AND speaker = $3
		ORDER BY id DESC LIMIT 1`
	var transcript string
	err := r.pool.QueryRow(ctx, query, sessionID, questionID, models.SpeakerCandidate).Scan(&transcript)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("latest transcript: %w", err)
	}
	return transcript, true, nil
}

// SaveCodeAnswer inserts a code submission.
func (r *Repository) SaveCodeAnswer(ctx context.Context, a *models.CodeAnswer) error {
	const query = `INSERT INTO code_answers (session_id, question_id, code, output, correctness)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, a.SessionID, a.QuestionID, a.Code, a.Output, a.Correctness).
		Scan(&a.ID, &a.CreatedAt)
}

// LatestCodeAnswer returns the newest code submission, or nil when there is none.
func (r *Repository) LatestCodeAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.CodeAnswer, error) {
	const query = `SELECT id, session_id, question_id, code, output, correctness, created_at
		FROM code_answers WHERE session_id = $1 AND question_id = $2
		ORDER BY id DESC LIMIT 1`
	var a models.CodeAnswer
	err := r.pool.QueryRow(ctx, query, sessionID, questionID).
		Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.Code, &a.Output, &a.Correctness, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest code answer: %w", err)
	}
	return &a, nil
}

// AppendTimeline inserts a timeline event.
func (r *Repository) AppendTimeline(ctx context.Context, ev *models.TimelineEvent) error {
	const query = `INSERT INTO timeline_events (session_id, question_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}
	return r.pool.QueryRow(ctx, query, ev.SessionID, ev.QuestionID, ev.Type, payload, ev.CreatedAt).Scan(&ev.ID)
}

// ListTimeline returns a session's timeline in order.
func (r *Repository) ListTimeline(ctx context.Context, sessionID uuid.UUID) ([]models.TimelineEvent, error) {
	const query = `SELECT id, session_id, question_id, type, payload, created_at
		FROM timeline_events WHERE session_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()
	list := []models.TimelineEvent{}
	for rows.Next() {
		var ev models.TimelineEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.QuestionID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		list = append(list, ev)
	}
	return list, rows.Err()
}
