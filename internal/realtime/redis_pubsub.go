package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "interview:"
	publishTTL    = 5 * time.Second
)

// relayPayload is the message published to Redis for cross-process delivery.
type relayPayload struct {
	Event json.RawMessage `json:"event"`
	At    int64           `json:"at"`
}

// Sender delivers an event to a session's live connection.
type Sender interface {
	Send(sessionID uuid.UUID, event any)
}

// ScoreRelay carries events produced outside the server process (scoring workers) to the
// process holding the live connection.
type ScoreRelay struct {
	client *redis.Client
	logger *zap.Logger
}

// NewScoreRelay creates a Redis pub/sub relay.
func NewScoreRelay(client *redis.Client, logger *zap.Logger) *ScoreRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreRelay{client: client, logger: logger}
}

// Channel returns the Redis channel for a session.
func Channel(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

// Publish sends event to the session's channel.
func (r *ScoreRelay) Publish(ctx context.Context, sessionID uuid.UUID, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	body, err := json.Marshal(relayPayload{Event: data, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	return r.client.Publish(ctx, Channel(sessionID), body).Err()
}

// Run pattern-subscribes to all interview channels and forwards events to dst until ctx is done.
func (r *ScoreRelay) Run(ctx context.Context, dst Sender) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sessionID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				continue
			}
			var p relayPayload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil || len(p.Event) == 0 {
				r.logger.Warn("bad relay payload", zap.String("channel", msg.Channel))
				continue
			}
			dst.Send(sessionID, p.Event)
		}
	}
}
