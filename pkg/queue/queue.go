package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueScoring is the Redis list key for answer scoring jobs.
	QueueScoring = "worker:scoring"
	// QueueProcessing holds jobs a worker has taken but not yet finished.
	QueueProcessing = "worker:scoring:processing"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeScoreAnswer JobType = "score_answer"
)

// ScoringPayload is the payload for answer scoring jobs.
type ScoringPayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	TurnID     int64     `json:"turn_id,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`

	// raw is the exact list entry the job was dequeued as.
	raw string
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueScoring enqueues a scoring job and returns its id.
func (q *Queue) EnqueueScoring(ctx context.Context, payload ScoringPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeScoreAnswer,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueScoring, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued scoring job",
		zap.String("job_id", job.ID),
		zap.String("session_id", payload.SessionID.String()),
		zap.Int64("question_id", payload.QuestionID),
	)
	return job.ID, nil
}

// Dequeue blocks up to timeout (0 = forever) for a job and atomically moves it onto the
// processing list, where it stays until Ack, Retry, Requeue or DeadLetter. A nil job with nil
// error means the wait timed out or the entry was malformed.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BLMove(ctx, QueueScoring, QueueProcessing, "LEFT", "RIGHT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", raw), zap.Error(err))
		if _, dlErr := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, QueueDLQ, raw)
			pipe.LRem(ctx, QueueProcessing, 1, raw)
			return nil
		}); dlErr != nil {
			q.logger.Error("dead-letter malformed job failed", zap.Error(dlErr))
		}
		return nil, nil
	}
	job.raw = raw
	return &job, nil
}

// Ack removes a finished job from the processing list.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, QueueProcessing, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", job.ID, err)
	}
	return nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		return q.DeadLetter(ctx, job, raw)
	}
	if err := q.move(ctx, job, QueueScoring, raw, false); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Requeue puts an interrupted job back at the head of the queue without counting an attempt.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	if err := q.move(ctx, job, QueueScoring, []byte(job.raw), true); err != nil {
		return err
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetter moves a job to the DLQ without further retries. raw may be nil.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, raw []byte) error {
	if raw == nil {
		var err error
		if raw, err = json.Marshal(job); err != nil {
			return err
		}
	}
	if err := q.move(ctx, job, QueueDLQ, raw, false); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// move pushes raw onto dst and drops the job's processing entry in one transaction.
func (q *Queue) move(ctx context.Context, job *Job, dst string, raw []byte, head bool) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if head {
			pipe.LPush(ctx, dst, raw)
		} else {
			pipe.RPush(ctx, dst, raw)
		}
		if job.raw != "" {
			pipe.LRem(ctx, QueueProcessing, 1, job.raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", job.ID, dst, err)
	}
	return nil
}

// Recover moves every job left on the processing list by a stopped or crashed worker back to the
// head of the queue. Jobs may run twice; scoring upserts one row per question.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, QueueProcessing, QueueScoring, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("recover processing jobs: %w", err)
		}
		n++
	}
	if n > 0 {
		q.logger.Warn("recovered unfinished scoring jobs", zap.Int("count", n))
	}
	return n, nil
}

// Depth counts jobs per list.
type Depth struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Dead       int64 `json:"dead"`
}

// Pending returns the number of queued, in-flight and dead-lettered scoring jobs.
func (q *Queue) Pending(ctx context.Context) (Depth, error) {
	var d Depth
	var err error
	if d.Queued, err = q.client.LLen(ctx, QueueScoring).Result(); err != nil {
		return Depth{}, err
	}
	if d.Processing, err = q.client.LLen(ctx, QueueProcessing).Result(); err != nil {
		return Depth{}, err
	}
	if d.Dead, err = q.client.LLen(ctx, QueueDLQ).Result(); err != nil {
		return Depth{}, err
	}
	return d, nil
}
