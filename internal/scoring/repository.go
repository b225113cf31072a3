package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-interview/backend/internal/models"
)

// ErrScoreNotFound is returned when a question has not been scored yet.
var ErrScoreNotFound = errors.New("score not found")

// Repository handles score and report persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a scoring repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertScore inserts or overwrites the single score row for (session, question).
func (r *Repository) UpsertScore(ctx context.Context, s *models.Score) error {
	const query = `INSERT INTO scores
		(session_id, question_id, modality, technical, communication, completeness, overall, feedback, raw_response, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id, question_id) DO UPDATE
		SET modality = EXCLUDED.modality,
			technical = EXCLUDED.technical,
			communication = EXCLUDED.communication,
			completeness = EXCLUDED.completeness,
			overall = EXCLUDED.overall,
			feedback = EXCLUDED.feedback,
			raw_response = EXCLUDED.raw_response,
			updated_at = EXCLUDED.updated_at`
	fb, err := json.Marshal(s.Feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, s.SessionID, s.QuestionID, s.Modality, s.Technical, s.Communication,
		s.Completeness, s.Overall, fb, s.RawResponse, s.UpdatedAt)
	return err
}

// ListScores returns every score row for a session ordered by question id.
func (r *Repository) ListScores(ctx context.Context, sessionID uuid.UUID) ([]models.Score, error) {
	const query = `SELECT session_id, question_id, modality, technical, communication, completeness, overall,
		feedback, raw_response, updated_at
		FROM scores WHERE session_id = $1 ORDER BY question_id`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// GetScore returns the score for one question.
func (r *Repository) GetScore(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Score, error) {
	const query = `SELECT session_id, question_id, modality, technical, communication, completeness, overall,
		feedback, raw_response, updated_at
		FROM scores WHERE session_id = $1 AND question_id = $2`
	s, err := scanScore(r.pool.QueryRow(ctx, query, sessionID, questionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	return s, err
}

// SaveReport stores the aggregate report and overall score on the session.
func (r *Repository) SaveReport(ctx context.Context, sessionID uuid.UUID, report models.Report) error {
	const query = `UPDATE sessions SET overall_score = $2, report = $3 WHERE id = $1`
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, sessionID, report.OverallScore, body)
	return err
}

func scanScore(row pgx.Row) (*models.Score, error) {
	var s models.Score
	var fb []byte
	if err := row.Scan(&s.SessionID, &s.QuestionID, &s.Modality, &s.Technical, &s.Communication, &s.Completeness,
		&s.Overall, &fb, &s.RawResponse, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if len(fb) > 0 {
		if err := json.Unmarshal(fb, &s.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
	}
	return &s, nil
}
