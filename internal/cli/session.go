package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aura-interview/backend/config"
	"github.com/aura-interview/backend/internal/auth"
	"github.com/aura-interview/backend/internal/interview"
	"github.com/aura-interview/backend/pkg/storage"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Print a session's timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var purgeAudioCmd = &cobra.Command{
	Use:   "purge-audio <session-id>",
	Short: "Delete the synthesized agent audio stored for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurgeAudio,
}

var tokenCmd = &cobra.Command{
	Use:   "token <candidate|reviewer> [session-id]",
	Short: "Issue an interview access token",
	Long: `Issue a signed token using CANDIDATE_TOKEN_SECRET. Candidate tokens are bound to one
session; reviewer tokens open the report, replay and rescore endpoints of every session.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runToken,
}

func runReplay(cmd *cobra.Command, args []string) error {
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

	repo := interview.NewRepository(e.pool)
	if _, err := repo.GetSession(ctx, sessionID); err != nil {
		return err
	}
	events, err := repo.ListTimeline(ctx, sessionID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tQUESTION\tEVENT\tPAYLOAD")
	for _, ev := range events {
		q := "-"
		if ev.QuestionID != nil {
			q = fmt.Sprint(*ev.QuestionID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.CreatedAt.Format("15:04:05.000"), q, ev.Type, string(ev.Payload))
	}
	return w.Flush()
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("CANDIDATE_TOKEN_SECRET is not set")
	}
	svc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	var token string
	switch args[0] {
	case auth.RoleCandidate:
		if len(args) != 2 {
			return fmt.Errorf("candidate tokens need a session id")
		}
		sessionID, err := parseSession(args[1])
		if err != nil {
			return err
		}
		token, err = svc.GenerateCandidate(sessionID)
		if err != nil {
			return err
		}
	case auth.RoleReviewer:
		if token, err = svc.GenerateReviewer(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown role %q; want candidate or reviewer", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runPurgeAudio(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	sessionID, err := parseSession(args[0])
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.AWS.Region == "" {
		return fmt.Errorf("AWS_REGION is not set")
	}
	logger := newLogger()
	defer logger.Sync()

	store, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		AudioBucket:          cfg.AWS.AudioBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		return err
	}
	n, err := store.DeleteSessionAudio(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("deleted %d objects before failing: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audio objects\n", n)
	return nil
}
