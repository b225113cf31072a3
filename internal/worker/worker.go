package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-interview/backend/internal/models"
	"github.com/aura-interview/backend/internal/scoring"
	"github.com/aura-interview/backend/pkg/queue"
)

const pollTimeout = 5 * time.Second

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// JobQueue is the subset of the Redis queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
	Retry(ctx context.Context, job *queue.Job) error
	Requeue(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job, raw []byte) error
	Recover(ctx context.Context) (int, error)
}

// Dispatcher grades one answer.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID uuid.UUID, questionID int64) (*models.Score, error)
}

// ScoringProcessor processes scoring jobs: grade the answer, upsert the score, recompute the report.
type ScoringProcessor struct {
	scorer  Dispatcher
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewScoringProcessor creates a scoring job processor.
func NewScoringProcessor(scorer Dispatcher, q JobQueue, logger *zap.Logger) *ScoringProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringProcessor{scorer: scorer, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one scoring job.
func (p *ScoringProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeScoreAnswer {
		return fmt.Errorf("%w: unknown job type: %s", errPermanent, job.Type)
	}
	var payload queue.ScoringPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}

	score, err := p.scorer.Dispatch(ctx, payload.SessionID, payload.QuestionID)
	if err != nil {
		if errors.Is(err, scoring.ErrNoAnswer) {
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		return err
	}
	p.logger.Info("scoring job completed",
		zap.String("job_id", job.ID),
		zap.String("session_id", payload.SessionID.String()),
		zap.Int64("question_id", payload.QuestionID),
		zap.Float64("overall", score.Overall),
	)
	return nil
}

// Run returns unfinished jobs of a previous run to the queue, then starts concurrency worker
// loops and blocks until ctx is done and all loops exit.
func (p *ScoringProcessor) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	if _, err := p.queue.Recover(ctx); err != nil {
		p.logger.Error("recover unfinished jobs", zap.Error(err))
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info("scoring workers stopped")
}

func (p *ScoringProcessor) loop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Int("worker", id), zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.Int("worker", id), zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if p.handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

// handle settles one dequeued job and reports whether the loop should back off. Settling uses a
// context that survives shutdown so an interrupted job always leaves the processing list.
func (p *ScoringProcessor) handle(ctx context.Context, job *queue.Job) bool {
	settle := context.WithoutCancel(ctx)
	err := p.Process(ctx, job)
	switch {
	case err == nil:
		if ackErr := p.queue.Ack(settle, job); ackErr != nil {
			p.logger.Error("ack failed", zap.String("job_id", job.ID), zap.Error(ackErr))
		}
		return false
	case ctx.Err() != nil:
		p.logger.Warn("job interrupted by shutdown", zap.String("job_id", job.ID), zap.Error(err))
		if reErr := p.queue.Requeue(settle, job); reErr != nil {
			p.logger.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
		return false
	case errors.Is(err, errPermanent):
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		if dlErr := p.queue.DeadLetter(settle, job, nil); dlErr != nil {
			p.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(dlErr))
		}
		return false
	default:
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		if reErr := p.queue.Retry(settle, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
		return true
	}
}

func (p *ScoringProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
