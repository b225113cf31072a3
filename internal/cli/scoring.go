package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aura-interview/backend/internal/interview"
	"github.com/aura-interview/backend/internal/llm"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/internal/scoring"
	"github.com/aura-interview/backend/pkg/queue"
)

var (
	rescoreSync    bool
	reportQuestion int64
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore <session-id> <question-id>",
	Short: "Re-dispatch scoring for one answered question",
	Long: `Enqueue a scoring job for the question, or grade it in this process with --sync.
Repeating it overwrites the question's single score row.`,
	Args: cobra.ExactArgs(2),
	RunE: runRescore,
}

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Rebuild a session report from its stored scores and print it",
	Long: `Rebuild and print the session report. With --question, print only the stored score row of
that question instead.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show scoring queue depth and dead-lettered jobs",
	RunE:  runQueue,
}

func init() {
	rescoreCmd.Flags().BoolVar(&rescoreSync, "sync", false, "Grade in this process instead of enqueueing")
	reportCmd.Flags().Int64Var(&reportQuestion, "question", 0, "Print the stored score of one question")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseSession(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id %q: %w", arg, err)
	}
	return id, nil
}

func runRescore(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	sessionID, err := parseSession(args[0])
	if err != nil {
		return err
	}
	questionID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid question id %q: %w", args[1], err)
	}

	e, err := openEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	repo := interview.NewRepository(e.pool)
	if _, err := repo.GetQuestion(ctx, sessionID, questionID); err != nil {
		return err
	}

	if !rescoreSync {
		taskID, err := queue.NewQueue(e.rdb.Client, e.logger).EnqueueScoring(ctx, queue.ScoringPayload{
			SessionID:  sessionID,
			QuestionID: questionID,
		})
		if err != nil {
			return fmt.Errorf("enqueueing scoring: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued scoring task %s\n", taskID)
		return nil
	}

	model, err := llm.New(ctx, e.cfg.Scoring, scoring.SystemInstruction, e.logger)
	if err != nil {
		return err
	}
	relay := realtime.NewScoreRelay(e.rdb.Client, e.logger)
	scorer := scoring.NewScorer(repo, scoring.NewRepository(e.pool), model, relay, e.cfg.Scoring, e.logger)
	score, err := scorer.Dispatch(ctx, sessionID, questionID)
	if err != nil {
		return err
	}
	return printJSON(cmd, score)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	sessionID, err := parseSession(args[0])
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := interview.NewRepository(e.pool).GetSession(ctx, sessionID); err != nil {
		return err
	}
	scores := scoring.NewRepository(e.pool)
	if reportQuestion > 0 {
		score, err := scores.GetScore(ctx, sessionID, reportQuestion)
		if err != nil {
			return fmt.Errorf("question %d: %w", reportQuestion, err)
		}
		return printJSON(cmd, score)
	}
	// Recompute never calls the model.
	scorer := scoring.NewScorer(nil, scores, nil, nil, e.cfg.Scoring, e.logger)
	report, err := scorer.Recompute(ctx, sessionID)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	d, err := queue.NewQueue(e.rdb.Client, e.logger).Pending(ctx)
	if err != nil {
		return fmt.Errorf("reading queue depth: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-11s %d\n%-11s %d\n%-11s %d\n",
		"queued", d.Queued, "processing", d.Processing, "dead", d.Dead)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
